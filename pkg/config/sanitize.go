/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"reflect"
	"strings"
)

const redacted = "[redacted]"

// Sanitize renders cfg as a map keyed by json names with every field tagged
// sensitive:"true" replaced by a placeholder. It is used to log the
// effective configuration at startup.
func Sanitize(cfg interface{}) map[string]interface{} {
	out, ok := sanitizeValue(reflect.ValueOf(cfg)).(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}

	return out
}

func sanitizeValue(v reflect.Value) interface{} {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}

		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return sanitizeStruct(v)
	case reflect.Slice, reflect.Array:
		items := make([]interface{}, v.Len())
		for i := range items {
			items[i] = sanitizeValue(v.Index(i))
		}

		return items
	default:
		if !v.IsValid() || !v.CanInterface() {
			return nil
		}

		return v.Interface()
	}
}

func sanitizeStruct(v reflect.Value) map[string]interface{} {
	t := v.Type()
	result := make(map[string]interface{}, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := strings.Split(field.Tag.Get("json"), ",")[0]

		switch name {
		case "-":
			continue
		case "":
			name = field.Name
		}

		if field.Tag.Get("sensitive") == "true" {
			if !v.Field(i).IsZero() {
				result[name] = redacted
			}

			continue
		}

		result[name] = sanitizeValue(v.Field(i))
	}

	return result
}
