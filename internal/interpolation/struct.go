package interpolation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

const tagName = "env_interpolation"

// InterpolateStruct expands environment references in every exported field tagged
// `env_interpolation:"yes"`, in place. Supported field kinds are strings, string pointers,
// string slices, string-valued maps, and nested structs (direct, pointer or slice) whose own
// tagged fields are expanded in turn. Fields without the tag are never touched.
func InterpolateStruct(v any) error {
	if v == nil {
		return nil
	}

	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct or pointer to struct, got %T", v)
	}
	if !val.CanAddr() {
		return fmt.Errorf("cannot interpolate %T in place, pass a pointer", v)
	}

	return interpolateFields(val)
}

func interpolateFields(val reflect.Value) error {
	typ := val.Type()
	var errs []error
	for i := range val.NumField() {
		field := val.Field(i)
		info := typ.Field(i)
		if !field.CanSet() || !strings.EqualFold(info.Tag.Get(tagName), "yes") {
			continue
		}
		if err := interpolateValue(field); err != nil {
			errs = append(errs, fmt.Errorf("field %s%w", info.Name, err))
		}
	}
	return errors.Join(errs...)
}

// interpolateValue expands one settable value. Returned errors start with the element path
// (e.g. "[2]" or ": ...") so callers can prefix the field name.
func interpolateValue(v reflect.Value) error {
	switch v.Kind() {
	case reflect.String:
		if v.String() == "" {
			return nil
		}
		out, err := ExpandEnvVars(v.String())
		if err != nil {
			return fmt.Errorf(": %w", err)
		}
		v.SetString(out)

	case reflect.Struct:
		if err := interpolateFields(v); err != nil {
			return fmt.Errorf(": %w", err)
		}

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		elem := v.Elem()
		if elem.Kind() != reflect.String && elem.Kind() != reflect.Struct {
			return nil
		}
		return interpolateValue(elem)

	case reflect.Slice:
		var errs []error
		for j := range v.Len() {
			if err := interpolateValue(v.Index(j)); err != nil {
				errs = append(errs, fmt.Errorf("[%d]%w", j, err))
			}
		}
		return errors.Join(errs...)

	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String ||
			v.Type().Elem().Kind() != reflect.String {
			return nil
		}
		var errs []error
		iter := v.MapRange()
		for iter.Next() {
			out, err := ExpandEnvVars(iter.Value().String())
			if err != nil {
				errs = append(errs, fmt.Errorf("[%s]: %w", iter.Key().String(), err))
				continue
			}
			v.SetMapIndex(iter.Key(), reflect.ValueOf(out).Convert(v.Type().Elem()))
		}
		return errors.Join(errs...)
	}
	return nil
}
