// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// IsValidEmail выполняет синтаксическую проверку адреса электронной почты:
// ровно один символ @, непустая локальная часть и домен с точкой.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t") {
		return false
	}

	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}

	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}

	return true
}

// IsValidMobileNumber проверяет номер телефона: необязательный ведущий плюс
// и от 10 до 15 цифр без иных символов.
func IsValidMobileNumber(number string) bool {
	if number == "" {
		return false
	}

	digits := 0
	for i, ch := range number {
		if ch == '+' && i == 0 {
			continue
		}
		if !unicode.IsDigit(ch) {
			return false
		}
		digits++
	}

	return digits >= 10 && digits <= 15
}
