package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ACE LMS API",
        "description": "Learning management API: course catalog, MVK requirements, users, gamification and reports.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Auth", "description": "Login, token refresh and logout"},
        {"name": "Courses", "description": "Course catalog and enrollments"},
        {"name": "MVK", "description": "Minimum viable knowledge requirements"},
        {"name": "Users", "description": "User management"},
        {"name": "Gamification", "description": "Badges, achievements, points and leaderboard"},
        {"name": "Reports", "description": "Asynchronous report generation"},
        {"name": "Settings", "description": "Platform settings"},
        {"name": "Dashboard", "description": "Role specific overviews"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange credentials for tokens",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Inactive account", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid refresh token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TokenRequest"}}
                ],
                "responses": {"204": {"description": "Logged out"}}
            }
        },
        "/auth/password": {
            "put": {
                "tags": ["Auth"],
                "summary": "Change password and revoke every session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "Password changed"},
                    "400": {"description": "Password rejected by the security settings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Current password is wrong", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "Filter the course catalog",
                "description": "Every query parameter other than paging and sorting is a filter criterion. meta.summary is computed over the whole catalog.",
                "parameters": [
                    {"name": "level", "in": "query", "type": "string"},
                    {"name": "college", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["all", "not_enrolled", "in_progress", "completed"]},
                    {"name": "title", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown filter or sort key", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/options": {
            "get": {"tags": ["Courses"], "summary": "Distinct filter values", "responses": {"200": {"description": "OK"}}}
        },
        "/courses/stats": {
            "get": {"tags": ["Courses"], "summary": "Enrollment summary", "responses": {"200": {"description": "OK"}}}
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Course detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/courses/{id}/enroll": {
            "post": {
                "tags": ["Courses"],
                "summary": "Enroll the current user",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Enrolled"}, "409": {"description": "Already enrolled"}}
            }
        },
        "/courses/{id}/progress": {
            "put": {
                "tags": ["Courses"],
                "summary": "Update course progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProgressRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Progress out of range"}}
            }
        },
        "/mvk/requirements": {
            "get": {
                "tags": ["MVK"],
                "summary": "Filter MVK requirements",
                "parameters": [
                    {"name": "college", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "level", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/mvk/requirements/{id}/progress": {
            "put": {
                "tags": ["MVK"],
                "summary": "Update requirement progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProgressRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/mvk/colleges": {
            "get": {"tags": ["MVK"], "summary": "Colleges with requirements", "responses": {"200": {"description": "OK"}}}
        },
        "/mvk/progress": {
            "get": {"tags": ["MVK"], "summary": "Progress per college", "responses": {"200": {"description": "OK"}}}
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "Filter users",
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "403": {"description": "Forbidden"}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Email taken"}}
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "User detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete user",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/gamification/leaderboard": {
            "get": {"tags": ["Gamification"], "summary": "Points leaderboard", "responses": {"200": {"description": "OK"}}}
        },
        "/gamification/awards": {
            "post": {
                "tags": ["Gamification"],
                "summary": "Award a badge, achievement or points",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AwardRequest"}}],
                "responses": {"201": {"description": "Awarded"}}
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a report",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateReportRequest"}}],
                "responses": {"202": {"description": "Queued"}}
            }
        },
        "/reports/jobs/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/settings": {
            "get": {"tags": ["Settings"], "summary": "Platform settings", "responses": {"200": {"description": "OK"}}}
        },
        "/dashboard": {
            "get": {"tags": ["Dashboard"], "summary": "Dashboard for the caller's role", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "TokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {"refresh_token": {"type": "string"}}
        },
        "ChangePasswordRequest": {
            "type": "object",
            "required": ["current_password", "new_password"],
            "properties": {"current_password": {"type": "string"}, "new_password": {"type": "string"}}
        },
        "ProgressRequest": {
            "type": "object",
            "properties": {"progress": {"type": "integer", "minimum": 0, "maximum": 100}}
        },
        "CreateUserRequest": {
            "type": "object",
            "required": ["name", "email", "role", "password"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string", "enum": ["admin", "instructor", "learner"]},
                "password": {"type": "string"}
            }
        },
        "AwardRequest": {
            "type": "object",
            "required": ["user_id", "type"],
            "properties": {
                "user_id": {"type": "string"},
                "type": {"type": "string", "enum": ["badge", "achievement", "points"]},
                "item_id": {"type": "string"},
                "points": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "GenerateReportRequest": {
            "type": "object",
            "required": ["type"],
            "properties": {
                "type": {"type": "string", "enum": ["user_activity", "course_completion", "mvk_progress", "assessment_results", "content_engagement"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "criteria": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
