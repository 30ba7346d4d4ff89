package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// maxJSONBody bounds JSON request bodies. Inline data URLs make captures
// larger than the photo limit itself.
const maxJSONBody = domain.MaxImageSize*4/3 + 64*1024

// =============================================================================
// Request Schemas
// =============================================================================

var (
	createInspectionSchema = mustSchema(`{
		"type": "object",
		"required": ["establishmentName", "address", "type"],
		"properties": {
			"establishmentName": {"type": "string", "minLength": 1, "maxLength": 200},
			"address":           {"type": "string", "minLength": 1, "maxLength": 500},
			"type":              {"enum": ["internal", "delegated"]},
			"date":              {"type": "string", "format": "date-time"},
			"metadata": {
				"type": "object",
				"properties": {
					"cnpj":             {"type": "string"},
					"responsibleName":  {"type": "string"},
					"contactPhone":     {"type": "string"},
					"totalArea":        {"type": "number", "minimum": 0},
					"floors":           {"type": "integer", "minimum": 0},
					"constructionYear": {"type": "integer", "minimum": 0},
					"operatingHours":   {"type": "string"}
				}
			}
		}
	}`)

	addInstanceSchema = mustSchema(`{
		"type": "object",
		"required": ["poiId"],
		"properties": {
			"poiId": {"type": "string", "minLength": 1}
		}
	}`)

	submitPhaseSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"dataUrl":                   {"type": "string"},
			"timestamp":                 {"type": "integer"},
			"location":                  {"$ref": "#/definitions/location"},
			"selectedRecommendationIds": {"type": "array", "items": {"type": "string"}},
			"comment":                   {"type": "string", "maxLength": 2000},
			"status":                    {"enum": ["pending", "satisfactory", "not_satisfactory", "not_applicable"]},
			"notApplicable":             {"type": "boolean"},
			"riskLevel":                 {"enum": ["critical", "medium", "low"]},
			"deadlineDays":              {"type": "integer", "minimum": 0},
			"finalizeReview":            {"type": "boolean"}
		},
		"definitions": {
			"location": {
				"type": "object",
				"required": ["lat", "lng"],
				"properties": {
					"lat": {"type": "number", "minimum": -90, "maximum": 90},
					"lng": {"type": "number", "minimum": -180, "maximum": 180}
				}
			}
		}
	}`)

	classifySchema = mustSchema(`{
		"type": "object",
		"required": ["riskLevel"],
		"properties": {
			"riskLevel":    {"enum": ["critical", "medium", "low"]},
			"deadlineDays": {"type": "integer", "minimum": 0}
		}
	}`)

	captureSchema = mustSchema(`{
		"type": "object",
		"required": ["poiId"],
		"properties": {
			"poiId":           {"type": "string", "minLength": 1},
			"dataUrl":         {"type": "string", "minLength": 1},
			"isNotApplicable": {"type": "boolean"},
			"timestamp":       {"type": "integer"},
			"location": {
				"type": "object",
				"required": ["lat", "lng"],
				"properties": {
					"lat": {"type": "number", "minimum": -90, "maximum": 90},
					"lng": {"type": "number", "minimum": -180, "maximum": 180}
				}
			},
			"comment": {"type": "string", "maxLength": 2000}
		},
		"if": {
			"required": ["isNotApplicable"],
			"properties": {"isNotApplicable": {"enum": [true]}}
		},
		"else": {"required": ["dataUrl"]}
	}`)

	bulkNotApplicableSchema = mustSchema(`{
		"type": "object",
		"required": ["poiIds"],
		"properties": {
			"poiIds": {
				"type": "array",
				"minItems": 1,
				"maxItems": 500,
				"items": {"type": "string", "minLength": 1}
			}
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("handler: invalid request schema: %v", err))
	}
	return schema
}

// =============================================================================
// Decoding
// =============================================================================

// decodeJSON reads the request body, validates it against schema and
// decodes it into dst. Schema violations become a domain.ValidationError
// keyed by the offending field.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Wrap(err, domain.ETOOLARGE, op, fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit))
		}
		return domain.Wrap(err, domain.EINVALID, op, "Could not read request body.")
	}
	if len(body) == 0 {
		return domain.Invalid(op, "Request body is required.")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return domain.Invalid(op, "Request body is not valid JSON.")
	}
	if !result.Valid() {
		var ve *domain.ValidationError
		for _, desc := range result.Errors() {
			field := schemaField(desc)
			if ve == nil {
				ve = domain.NewValidationError(op, field, desc.Description())
				continue
			}
			if _, seen := ve.Fields[field]; !seen {
				ve.Fields[field] = desc.Description()
			}
		}
		return ve
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return domain.Invalid(op, "Request body is not valid JSON.")
	}
	return nil
}

// schemaField names the field a schema violation refers to. Missing
// required properties are reported on the property itself.
func schemaField(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			return prop
		}
	}
	field := desc.Field()
	if field == "(root)" {
		return "body"
	}
	return field
}

// pathUUID parses a UUID path parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Errorf(domain.EINVALID, "", "Invalid %s.", name)
	}
	return id, nil
}

// pathInt parses an integer path parameter.
func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, domain.Errorf(domain.EINVALID, "", "Invalid %s.", name)
	}
	return n, nil
}

// readPhoto extracts the "photo" file of a multipart upload, or the raw body
// for other content types. It returns the data and its declared type.
func readPhoto(w http.ResponseWriter, r *http.Request, op string) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxImageSize+1024*1024)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, "", photoReadError(op, err)
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			return nil, "", domain.Invalid(op, "The photo field is required.")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", photoReadError(op, err)
		}
		return data, header.Header.Get("Content-Type"), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", photoReadError(op, err)
	}
	return data, r.Header.Get("Content-Type"), nil
}

func photoReadError(op string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.Wrap(err, domain.ETOOLARGE, op, fmt.Sprintf("Photo exceeds the maximum size of %d bytes.", domain.MaxImageSize))
	}
	return domain.Wrap(err, domain.EINVALID, op, "Could not read the uploaded photo.")
}
