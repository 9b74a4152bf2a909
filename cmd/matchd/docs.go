package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           matchd API
// @version         1.0
// @description     HTTP API for manifest-driven match outcome prediction serving.
//
// @contact.name   matchd maintainers
// @contact.url    https://github.com/your-org/matchd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
