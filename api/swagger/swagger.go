package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "UCMS API",
        "description": "University course management service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, tokens and passwords"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Courses", "description": "Course catalog management"},
        {"name": "Enrollments", "description": "Course registration"},
        {"name": "Timetable", "description": "Weekly schedule and exports"},
        {"name": "Assignments", "description": "Assignments and submissions"},
        {"name": "Grades", "description": "Grade components and summaries"},
        {"name": "Attendance", "description": "Session attendance"},
        {"name": "Exams", "description": "Exam scheduling and results"},
        {"name": "Materials", "description": "Course learning resources"},
        {"name": "Announcements", "description": "Campus and course notices"},
        {"name": "Dashboard", "description": "Role landing views"},
        {"name": "Reports", "description": "Asynchronous report generation"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Weekly timetable for the caller",
                "responses": {
                    "200": {"description": "Materialized timetable"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Role-specific dashboard",
                "responses": {
                    "200": {"description": "Dashboard payload"}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a background report",
                "responses": {
                    "202": {"description": "Job accepted"}
                }
            }
        }
    },
    "definitions": {
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
