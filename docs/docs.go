// Package docs OpenAPI описание HTTP API в формате swag; регистрируется при импорте.
// Пути и схемы повторяют swag-аннотации в internal/http/handlers.go, при их изменении правится вручную.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/batch/best-market": {
            "post": {
                "description": "Market with the lowest total price that can fulfill the whole batch.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["batch"],
                "summary": "Best market for batch",
                "parameters": [
                    {"description": "Items", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpapi.purchaseReq"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Response-domain_Market"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/service.Response-any"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        },
        "/markets": {
            "get": {
                "produces": ["application/json"],
                "tags": ["markets"],
                "summary": "List markets",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Response-array_domain_Market"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["markets"],
                "summary": "Create market",
                "parameters": [
                    {"description": "Market", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpapi.createMarketReq"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.Response-string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        },
        "/markets/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["markets"],
                "summary": "Get market by id",
                "parameters": [
                    {"type": "string", "description": "Market ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Response-domain_Market"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/service.Response-any"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        },
        "/markets/{id}/affordable": {
            "get": {
                "description": "Max amount of every product purchasable when the whole budget is spent on it alone.",
                "produces": ["application/json"],
                "tags": ["markets"],
                "summary": "Affordable products",
                "parameters": [
                    {"type": "string", "description": "Market ID", "name": "id", "in": "path", "required": true},
                    {"type": "number", "description": "Budget", "name": "budget", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Response-map_string_int"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/service.Response-any"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        },
        "/markets/{id}/products": {
            "post": {
                "description": "Creates the stock line or adds to its amount; price replaces the current one.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["markets"],
                "summary": "Add product to market",
                "parameters": [
                    {"type": "string", "description": "Market ID", "name": "id", "in": "path", "required": true},
                    {"description": "Stock", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpapi.stockProductReq"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Response-string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/service.Response-any"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        },
        "/markets/{id}/purchase": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["markets"],
                "summary": "Buy products",
                "parameters": [
                    {"type": "string", "description": "Market ID", "name": "id", "in": "path", "required": true},
                    {"description": "Items", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpapi.purchaseReq"}}
                ],
                "responses": {
                    "200": {"description": "data: total price, decimal string", "schema": {"$ref": "#/definitions/service.Response-decimal_Decimal"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/service.Response-any"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        },
        "/products": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Create product",
                "parameters": [
                    {"description": "Product", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpapi.createProductReq"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.Response-string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/service.Response-any"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        },
        "/products/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Get product by name",
                "parameters": [
                    {"type": "string", "description": "Product name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Response-domain_Product"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        },
        "/products/{name}/cheapest-market": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Cheapest market for product",
                "parameters": [
                    {"type": "string", "description": "Product name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Response-domain_Market"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/service.Response-any"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Market": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "domain.Product": {
            "type": "object",
            "properties": {
                "name": {"type": "string"}
            }
        },
        "domain.PurchaseItem": {
            "type": "object",
            "required": ["product_name"],
            "properties": {
                "amount": {"type": "integer"},
                "product_name": {"type": "string"}
            }
        },
        "httpapi.createMarketReq": {
            "type": "object",
            "required": ["address", "name"],
            "properties": {
                "address": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "httpapi.createProductReq": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"}
            }
        },
        "httpapi.purchaseReq": {
            "type": "object",
            "required": ["items"],
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/domain.PurchaseItem"}}
            }
        },
        "httpapi.stockProductReq": {
            "type": "object",
            "required": ["product_name"],
            "properties": {
                "amount": {"type": "integer"},
                "price": {"type": "string", "example": "2.50"},
                "product_name": {"type": "string"}
            }
        },
        "service.Response-any": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {},
                "message": {"type": "string"}
            }
        },
        "service.Response-array_domain_Market": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {"type": "array", "items": {"$ref": "#/definitions/domain.Market"}},
                "message": {"type": "string"}
            }
        },
        "service.Response-decimal_Decimal": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {"type": "string", "format": "decimal", "example": "6.00"},
                "message": {"type": "string"}
            }
        },
        "service.Response-domain_Market": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {"$ref": "#/definitions/domain.Market"},
                "message": {"type": "string"}
            }
        },
        "service.Response-domain_Product": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {"$ref": "#/definitions/domain.Product"},
                "message": {"type": "string"}
            }
        },
        "service.Response-map_string_int": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {"type": "object", "additionalProperties": {"type": "integer"}},
                "message": {"type": "string"}
            }
        },
        "service.Response-string": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Marketplace API",
	Description:      "Markets, products, stock and pricing queries.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
