package request

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/Sternrassler/api-connector/pkg/spec"
)

// BodyEncoder serializes a rendered body.
type BodyEncoder interface {
	ContentType() string
	Encode(body map[string]string) (io.Reader, error)
}

// FormEncoder encodes bodies as application/x-www-form-urlencoded.
type FormEncoder struct{}

// ContentType implements BodyEncoder.
func (FormEncoder) ContentType() string { return string(spec.ContentTypeForm) }

// Encode implements BodyEncoder.
func (FormEncoder) Encode(body map[string]string) (io.Reader, error) {
	values := make(url.Values, len(body))
	for k, v := range body {
		values.Set(k, v)
	}
	return strings.NewReader(values.Encode()), nil
}

// JSONEncoder encodes bodies as a flat JSON object.
type JSONEncoder struct{}

// ContentType implements BodyEncoder.
func (JSONEncoder) ContentType() string { return string(spec.ContentTypeJSON) }

// Encode implements BodyEncoder.
func (JSONEncoder) Encode(body map[string]string) (io.Reader, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// EncoderFor returns the encoder of a body content type. Any type other
// than form-urlencoded or JSON is a ConfigurationError.
func EncoderFor(table string, ct spec.ContentType) (BodyEncoder, error) {
	switch ct {
	case spec.ContentTypeForm:
		return FormEncoder{}, nil
	case spec.ContentTypeJSON:
		return JSONEncoder{}, nil
	default:
		return nil, &spec.ConfigurationError{
			Table:  table,
			Field:  "body.ctype",
			Reason: "unsupported body content type " + string(ct),
		}
	}
}
