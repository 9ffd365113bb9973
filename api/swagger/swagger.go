package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Club Sessions API",
        "description": "Scheduling, enrollment and attendance for weekly club sessions",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Staff authentication"},
        {"name": "Terms", "description": "Term date windows"},
        {"name": "Sessions", "description": "Recurring weekly sessions"},
        {"name": "Calendar", "description": "Cross-session occurrence feed"},
        {"name": "Enrollments", "description": "Signups and admission lifecycle"},
        {"name": "Attendance", "description": "Attendance ledger and stats"},
        {"name": "Registers", "description": "Asynchronous register exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Staff login",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/terms": {
            "get": {
                "tags": ["Terms"],
                "summary": "List terms",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Terms"],
                "summary": "Create term",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/terms/{id}": {
            "get": {
                "tags": ["Terms"],
                "summary": "Get term",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Terms"],
                "summary": "Update term",
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Terms"],
                "summary": "Delete term",
                "responses": {"204": {"description": "Deleted"}, "409": {"description": "Term in use"}}
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Create session",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/sessions/{id}/occurrences": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List occurrences in term order",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/calendar": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Occurrence feed for a date range",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/signups": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Public signup",
                "responses": {"201": {"description": "Waitlisted enrollment created"}}
            }
        },
        "/sessions/{id}/enrollments/bulk-status": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Bulk status transition",
                "responses": {
                    "200": {"description": "Updated"},
                    "409": {"description": "Capacity exceeded"}
                }
            }
        },
        "/sessions/{id}/attendance/bulk": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Save attendance marks",
                "responses": {"200": {"description": "Saved with skip report"}}
            }
        },
        "/enrollments/{id}/attendance/stats": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Attendance stats",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/registers": {
            "post": {
                "tags": ["Registers"],
                "summary": "Queue register export",
                "responses": {"202": {"description": "Job queued"}}
            }
        },
        "/registers/{id}": {
            "get": {
                "tags": ["Registers"],
                "summary": "Poll export job",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"}
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
