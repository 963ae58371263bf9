// Package docs provides generated OpenAPI documentation.
//
// Quotient API
//
//	@title			Quotient API
//	@version		1.0
//	@description	Hardware-aware extraction of structured inventory items from free text and documents.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/quotient-labs/quotient
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/quotient/serve.go -o ./swagger --parseDependency --parseInternal
