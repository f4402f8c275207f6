package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with
// `make swagger-gen` after changing handler annotations.
//
// @title           genctl API
// @version         1.0
// @description     HTTP facade for model lifecycle and generation on a remote generation service.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
