package tools

import "unicode"

type printableType interface {
	~string | ~[]rune | ~[]byte
}

// IsPrintable drops every rune that isn't printable, CR and LF included,
// so peer supplied text can't break log lines.
func IsPrintable[T printableType](v T) string {
	var result []rune

	switch v := any(v).(type) {
	case string:
		for _, r := range v {
			if unicode.IsPrint(r) {
				result = append(result, r)
			}
		}
	case []rune:
		for _, r := range v {
			if unicode.IsPrint(r) {
				result = append(result, r)
			}
		}
	case []byte:
		for _, r := range string(v) {
			if unicode.IsPrint(r) {
				result = append(result, r)
			}
		}
	}
	return string(result)
}
