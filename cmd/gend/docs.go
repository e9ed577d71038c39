package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/gend/docs.go`.
//
// @title           gend API
// @version         1.0
// @description     HTTP control channel and status stream for a local LLM generation session.
//
// @contact.name   gend maintainers
// @contact.url    https://github.com/your-org/gend
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
