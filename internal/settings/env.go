package settings

import (
	"reflect"
	"strconv"
	"strings"
	"time"
)

const envVarTagName = "env"

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnv overrides exported fields of the struct v from environment
// variables named <prefix>_<segments...>_<FIELD>. Values that fail to parse
// are ignored.
func applyEnv(v reflect.Value, prefix string, segments []string, lookup func(string) (string, bool)) {
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		seg := sf.Tag.Get(envVarTagName)
		if seg == "-" {
			continue
		}
		if seg == "" {
			seg = toScreamingSnake(sf.Name)
		}
		field := v.Field(i)
		path := append(append([]string{}, segments...), seg)
		raw, ok := lookup(buildEnvName(prefix, path))

		switch {
		case field.Kind() == reflect.Struct:
			applyEnv(field, prefix, path, lookup)
		case !ok || !field.CanSet():
		case field.Type() == durationType:
			if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
				field.SetInt(int64(d))
			}
		case field.Kind() == reflect.String:
			field.SetString(raw)
		case field.Kind() == reflect.Bool:
			if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
				field.SetBool(b)
			}
		case field.CanInt():
			if n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
				field.SetInt(n)
			}
		case field.CanUint():
			if n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err == nil {
				field.SetUint(n)
			}
		}
	}
}

func buildEnvName(prefix string, segments []string) string {
	if prefix == "" {
		return strings.Join(segments, "_")
	}
	return prefix + "_" + strings.Join(segments, "_")
}

// toScreamingSnake splits words on lower→upper transitions only, so
// MFCommand becomes MFCOMMAND and LogLevel becomes LOG_LEVEL.
func toScreamingSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteString(strings.ToUpper(string(r)))
	}
	return b.String()
}
