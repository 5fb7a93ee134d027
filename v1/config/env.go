package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix namespaces overrides that should not collide with other programs.
const EnvPrefix = "VECMIGRATE_"

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnv walks cfg and overrides every field tagged env:"NAME" with the value of
// VECMIGRATE_NAME or NAME, in that order. Nested structs are walked; a tag may
// appear on several fields, e.g. SERVICE_NAME.
func applyEnv(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: applyEnv needs a non-nil pointer", ErrInvalidConfig)
	}
	return walkEnv(v.Elem())
}

func walkEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := v.Field(i)

		if name := field.Tag.Get("env"); name != "" {
			raw, ok := lookupEnv(name)
			if !ok {
				continue
			}
			if err := setValue(fv, raw); err != nil {
				return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, name, raw, err)
			}
			continue
		}

		switch {
		case fv.Kind() == reflect.Struct:
			if err := walkEnv(fv); err != nil {
				return err
			}
		case fv.Kind() == reflect.Pointer && !fv.IsNil() && fv.Elem().Kind() == reflect.Struct:
			if err := walkEnv(fv.Elem()); err != nil {
				return err
			}
		}
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	if raw, ok := os.LookupEnv(EnvPrefix + name); ok {
		return raw, true
	}
	return os.LookupEnv(name)
}

func setValue(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", fv.Type().Elem())
		}
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		fv.Set(reflect.ValueOf(items).Convert(fv.Type()))
	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}
	return nil
}
