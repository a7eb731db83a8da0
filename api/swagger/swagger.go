package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TutorHive Booking API",
        "description": "Lesson booking and scheduling backend",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Availability", "description": "Teacher availability declarations and day views"},
        {"name": "Booking", "description": "Booking request lifecycle"},
        {"name": "Reschedule", "description": "Session change requests"},
        {"name": "Suspension", "description": "Enrollment suspension"},
        {"name": "Quota", "description": "Monthly adjustment quota"},
        {"name": "Export", "description": "Timetable downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and obtain an access token",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/teachers/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Availability view for one teacher and date",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "date", "in": "query", "type": "string", "required": true},
                    {"name": "segment", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Day availability"}
                }
            }
        },
        "/bookings": {
            "get": {
                "tags": ["Booking"],
                "summary": "List booking requests",
                "responses": {
                    "200": {"description": "Booking requests"}
                }
            },
            "post": {
                "tags": ["Booking"],
                "summary": "Create a booking request",
                "responses": {
                    "201": {"description": "Created as pending"},
                    "409": {"description": "Trial already used"}
                }
            }
        },
        "/bookings/{id}/approve": {
            "post": {
                "tags": ["Booking"],
                "summary": "Approve a pending booking request",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Enrollment created"},
                    "409": {"description": "Slot no longer available"},
                    "503": {"description": "Booking lock held"}
                }
            }
        },
        "/reschedules": {
            "post": {
                "tags": ["Reschedule"],
                "summary": "Create a change request",
                "responses": {
                    "201": {"description": "Created as pending"}
                }
            }
        },
        "/reschedules/{id}": {
            "delete": {
                "tags": ["Reschedule"],
                "summary": "Withdraw a pending change request",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Withdrawn, quota refunded"},
                    "403": {"description": "Not the applicant"}
                }
            }
        },
        "/reschedules/{id}/approve": {
            "post": {
                "tags": ["Reschedule"],
                "summary": "Approve a pending change request",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Applied"},
                    "409": {"description": "Target slot unavailable"}
                }
            }
        },
        "/suspensions": {
            "post": {
                "tags": ["Suspension"],
                "summary": "Request suspension of an enrollment",
                "responses": {
                    "201": {"description": "Created as pending"}
                }
            }
        },
        "/enrollments/{id}/quota": {
            "get": {
                "tags": ["Quota"],
                "summary": "Current month's adjustment quota",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Quota usage"}
                }
            }
        },
        "/enrollments/{id}/timetable": {
            "get": {
                "tags": ["Export"],
                "summary": "Download an enrollment's timetable",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV or PDF document"}
                }
            }
        }
    },
    "definitions": {
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
                "pagination": {"type": "object"},
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
