// Package decode turns raw response bodies into rows according to a
// table's response schema.
package decode

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/table"
	"github.com/tidwall/gjson"
)

// Decoder converts a response body into ordered rows.
type Decoder interface {
	Decode(body []byte, schema spec.ResponseSpec) (*table.Table, error)
}

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("decode failed")

// DecodeError reports a body that does not match its schema.
type DecodeError struct {
	Column string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Column != "" {
		msg += " column " + strconv.Quote(e.Column)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrDecode) match.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// JSON decodes application/json bodies. TablePath and column paths use
// gjson path syntax.
type JSON struct{}

// Decode implements Decoder.
func (JSON) Decode(body []byte, schema spec.ResponseSpec) (*table.Table, error) {
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{Reason: "invalid JSON body"}
	}

	records := gjson.ParseBytes(body)
	if schema.TablePath != "" {
		records = records.Get(schema.TablePath)
	}
	if !records.IsArray() {
		return nil, &DecodeError{Reason: fmt.Sprintf("table path %q does not select an array", schema.TablePath)}
	}

	out := table.New(schema.ColumnNames())
	var decodeErr error
	records.ForEach(func(_, record gjson.Result) bool {
		row := make(table.Row, len(schema.Columns))
		for _, col := range schema.Columns {
			v, err := convert(record.Get(col.Path), col.Type)
			if err != nil {
				decodeErr = &DecodeError{Column: col.Name, Reason: "convert value", Err: err}
				return false
			}
			row[col.Name] = v
		}
		out.Rows = append(out.Rows, row)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	return out, nil
}

// convert maps a JSON value to the Go value of a column type. Missing and
// null values become nil.
func convert(r gjson.Result, typ spec.ColumnType) (any, error) {
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}

	switch typ {
	case spec.ColumnString:
		if r.Type == gjson.String {
			return r.Str, nil
		}
		return r.Raw, nil

	case spec.ColumnInt:
		switch r.Type {
		case gjson.Number:
			if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return i, nil
			}
			if r.Num != float64(int64(r.Num)) {
				return nil, fmt.Errorf("%s is not an integer", r.Raw)
			}
			return int64(r.Num), nil
		case gjson.String:
			i, err := strconv.ParseInt(r.Str, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", r.Str)
			}
			return i, nil
		}

	case spec.ColumnFloat:
		switch r.Type {
		case gjson.Number:
			return r.Num, nil
		case gjson.String:
			f, err := strconv.ParseFloat(r.Str, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", r.Str)
			}
			return f, nil
		}

	case spec.ColumnBoolean:
		switch r.Type {
		case gjson.True, gjson.False:
			return r.Bool(), nil
		case gjson.String:
			b, err := strconv.ParseBool(r.Str)
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", r.Str)
			}
			return b, nil
		}

	case spec.ColumnObject:
		return r.Value(), nil

	default:
		return nil, fmt.Errorf("unsupported column type %q", typ)
	}

	return nil, fmt.Errorf("cannot convert %s to %s", r.Type, typ)
}
