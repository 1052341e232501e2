// Package docs registers the OpenAPI description of the HTTP API with swag.
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
        "/chat/requests": {
            "get": {
                "description": "Returns a page of the join requests the current user can moderate, newest first. Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["ChatRequests"],
                "summary": "List received join requests (paginated)",
                "operationId": "listChatRequests",
                "parameters": [
                    {"type": "integer", "example": 42, "description": "User ID", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/services.Result"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/handlers.ListChatRequestsResponse"}}}
                            ]
                        },
                        "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}
                    },
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "401": {"description": "Missing identity", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/requests/read": {
            "put": {
                "description": "Adds the current user to the read list of every request in chatrooms they moderate and clears their notice unread count.",
                "produces": ["application/json"],
                "tags": ["ChatRequests"],
                "summary": "Mark received join requests as read",
                "operationId": "markChatRequestsRead",
                "parameters": [
                    {"type": "integer", "example": 42, "description": "User ID", "name": "X-User-ID", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Result"}},
                    "401": {"description": "Missing identity", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/requests/{id}": {
            "get": {
                "description": "Returns one join request the current user can moderate. Missing and not-visible requests both yield code -1.",
                "produces": ["application/json"],
                "tags": ["ChatRequests"],
                "summary": "Get a received join request",
                "operationId": "getChatRequest",
                "parameters": [
                    {"type": "integer", "example": 42, "description": "User ID", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "integer", "example": 7, "description": "Request ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/services.Result"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/domain.ChatRequestDetail"}}}
                            ]
                        }
                    },
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing identity", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chatrooms/{id}/messages": {
            "get": {
                "description": "Returns a page of a chatroom's records, newest first. Only members may read; others get code -1.",
                "produces": ["application/json"],
                "tags": ["Chatrooms"],
                "summary": "List chatroom messages (paginated)",
                "operationId": "listChatroomMessages",
                "parameters": [
                    {"type": "integer", "example": 42, "description": "User ID", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "integer", "example": 3, "description": "Chatroom ID", "name": "id", "in": "path", "required": true},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/services.Result"},
                                {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/domain.MessageDetail"}}}}
                            ]
                        }
                    },
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing identity", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/ws": {
            "get": {
                "description": "Upgrades to a websocket. The server sends init first, then accepts client events as {\"event\",\"data\"} frames.",
                "tags": ["Realtime"],
                "summary": "Open a websocket session",
                "operationId": "connectSocket",
                "parameters": [
                    {"type": "integer", "example": 42, "description": "User ID", "name": "X-User-ID", "in": "header"},
                    {"type": "integer", "example": 42, "description": "User ID (browser clients)", "name": "uid", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"type": "string"}},
                    "400": {"description": "Not a websocket request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing identity", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Origin not allowed", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "domain.ChatRequestDetail": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "chatroom_id": {"type": "integer"},
                "applicant_id": {"type": "integer"},
                "request_reason": {"type": "string"},
                "status": {"type": "integer", "description": "0 pending, 1 agreed, 2 rejected"},
                "handler_id": {"type": "integer"},
                "reject_reason": {"type": "string"},
                "readed_list": {"type": "array", "items": {"type": "integer"}},
                "create_time": {"type": "integer"},
                "update_time": {"type": "integer"},
                "applicant_nickname": {"type": "string"},
                "applicant_avatar": {"type": "string"},
                "handler_nickname": {"type": "string"},
                "chatroom_name": {"type": "string"},
                "chatroom_avatar": {"type": "string"}
            }
        },
        "domain.MessageDetail": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "chatroom_id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "type": {"type": "integer", "description": "0 text, 1 chat invitation"},
                "data": {"type": "object"},
                "reply_id": {"type": "integer"},
                "create_time": {"type": "integer"},
                "nickname": {"type": "string"},
                "avatar": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "bad_request"},
                "message": {"type": "string", "example": "request id must be a positive integer"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.ListChatRequestsResponse": {
            "type": "object",
            "properties": {
                "pagination": {"$ref": "#/definitions/handlers.Pagination"},
                "requests": {"type": "array", "items": {"$ref": "#/definitions/domain.ChatRequestDetail"}}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "has_next": {"type": "boolean"},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "services.Result": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "description": "0 success, 1 capacity full, 2 reason too long, 3 already handled, -1 param error, -2 unknown"},
                "message": {"type": "string"},
                "data": {}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Group Chat API",
	Description:      "Join-request moderation, message history and the realtime websocket session.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
