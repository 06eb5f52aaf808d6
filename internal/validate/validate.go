// Package validate decodes untyped request payloads into typed commands and checks them
// against the shape declared in their struct tags.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"conduit-api/internal/domain"
)

var (
	once   sync.Once
	engine *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		engine = validator.New()
		engine.RegisterTagNameFunc(fieldName)
		if err := engine.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(fmt.Sprintf("register notblank validation: %v", err))
		}
	})
	return engine
}

// fieldName is the name a field carries in payloads and in failure messages.
func fieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// Struct checks v against its validate tags. All field failures are reported in a single
// VALIDATION error, in the order the fields are declared.
func Struct(v any) error {
	fieldErrs, err := ruleFailures(v)
	if err != nil {
		return err
	}
	if len(fieldErrs) == 0 {
		return nil
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}
	return domain.Validation(messages...)
}

func ruleFailures(v any) (validator.ValidationErrors, error) {
	err := instance().Struct(v)
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, fmt.Errorf("validate %T: %w", v, err)
	}
	return fieldErrs, nil
}

// Decode reads one JSON document from r into a T and checks it against its validate tags.
// Fields are decoded one by one, so every field of the wrong type is reported alongside
// the rule failures, all in field declaration order. A field that has the wrong type is
// not checked against its rules. An empty body decodes as an empty object.
func Decode[T any](r io.Reader) (T, error) {
	var out T
	report, err := decode(r, &out)
	if err != nil {
		return out, err
	}

	fieldErrs, err := ruleFailures(out)
	if err != nil {
		return out, err
	}
	if len(report.failed) == 0 && len(fieldErrs) == 0 {
		return out, nil
	}

	byPath := make(map[string][]string)
	var stray []string
	for _, fe := range fieldErrs {
		path := leafPath(fe.Namespace())
		if report.shadowed(path) {
			continue
		}
		if _, known := report.index[path]; !known {
			stray = append(stray, describe(fe))
			continue
		}
		byPath[path] = append(byPath[path], describe(fe))
	}

	var messages []string
	for _, path := range report.order {
		if msg, ok := report.failed[path]; ok {
			messages = append(messages, msg)
			continue
		}
		messages = append(messages, byPath[path]...)
	}
	messages = append(messages, stray...)
	if len(messages) == 0 {
		return out, nil
	}
	return out, domain.Validation(messages...)
}

// decodeReport records the payload paths in declaration order and the ones that failed
// to decode.
type decodeReport struct {
	order  []string
	index  map[string]int
	failed map[string]string
}

func (d *decodeReport) visit(path string) {
	if _, ok := d.index[path]; ok {
		return
	}
	d.index[path] = len(d.order)
	d.order = append(d.order, path)
}

func (d *decodeReport) fail(path, message string) {
	if _, ok := d.failed[path]; !ok {
		d.failed[path] = message
	}
}

// shadowed reports whether path or one of its parents already failed to decode.
func (d *decodeReport) shadowed(path string) bool {
	for p := path; ; {
		if _, ok := d.failed[p]; ok {
			return true
		}
		if p == "" {
			return false
		}
		i := strings.LastIndex(p, ".")
		if i < 0 {
			i = 0
		}
		p = p[:i]
	}
}

func decode(r io.Reader, dst any) (*decodeReport, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("decode into %T: destination must be a struct pointer", dst)
	}

	report := &decodeReport{index: make(map[string]int), failed: make(map[string]string)}

	var body []byte
	if r != nil {
		var err error
		body, err = io.ReadAll(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, domain.NewError(domain.KindValidation, "body is too large", err)
			}
			return nil, fmt.Errorf("read body: %w", err)
		}
	}

	var raw json.RawMessage
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&raw); err != nil {
			return nil, invalidJSON(err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, invalidJSON(errors.New("unexpected data after the JSON document"))
		}
	}

	decodeStruct(raw, rv.Elem(), "", report)
	return report, nil
}

func invalidJSON(err error) error {
	return domain.NewError(domain.KindValidation, "body must be valid JSON", err)
}

// decodeStruct fills v from the object in raw, visiting every field so that absent ones
// still take their place in the ordering.
func decodeStruct(raw json.RawMessage, v reflect.Value, prefix string, report *decodeReport) {
	var fields map[string]json.RawMessage
	if len(raw) > 0 && !isNull(raw) {
		if err := json.Unmarshal(raw, &fields); err != nil {
			report.visit(prefix)
			report.fail(prefix, fmt.Sprintf("%s must be an object", leafName(prefix)))
		}
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name := fieldName(sf)
		if !sf.IsExported() || name == "" {
			continue
		}
		path := join(prefix, name)
		value := lookup(fields, name)
		field := v.Field(i)

		if isNestedStruct(sf.Type) {
			report.visit(path)
			decodeStruct(value, field, path, report)
			continue
		}

		report.visit(path)
		if value == nil {
			continue
		}
		if err := json.Unmarshal(value, field.Addr().Interface()); err != nil {
			report.fail(path, fmt.Sprintf("%s must be %s", name, kindName(sf.Type)))
		}
	}
}

func isNestedStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != reflect.TypeOf(time.Time{})
}

// lookup matches keys the way encoding/json does: exact first, then case-insensitively.
func lookup(fields map[string]json.RawMessage, name string) json.RawMessage {
	if v, ok := fields[name]; ok {
		return v
	}
	for k, v := range fields {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// leafPath turns a validator namespace such as "request.article.tagList[0]" into the
// payload path "article.tagList".
func leafPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	} else {
		return namespace
	}
	if i := strings.Index(namespace, "["); i >= 0 {
		namespace = namespace[:i]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " can't be blank"
	case "email":
		return field + " is invalid"
	case "min":
		return fmt.Sprintf("%s is too short (minimum is %s characters)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s is too long (maximum is %s characters)", field, fe.Param())
	case "url":
		return field + " must be a URL"
	default:
		return field + " is invalid"
	}
}

func leafName(path string) string {
	if path == "" {
		return "body"
	}
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

func kindName(t reflect.Type) string {
	if t == nil {
		return "a value"
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "a list"
	case reflect.Pointer:
		return kindName(t.Elem())
	default:
		return "an object"
	}
}
