package main

// General API documentation for swaggo. Generate docs with `swag init -g cmd/modelsyncd/docs.go`.
//
// @title           modelsync API
// @version         1.0
// @description     HTTP API for keeping subscribers consistent with a shared tree of models.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
