// Package customer defines the CustomerInfo value object and its validation
// rules: name, email, Brazilian phone number, and CPF.
package customer

import (
	"regexp"
	"strings"

	"github.com/vzdolci/storefront/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[A-Za-z]{2,}$`)

// Info holds validated customer contact data. Construct it with New; a
// zero Info is not valid.
type Info struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	CPF   string `json:"cpf"`
}

// New validates and normalizes customer data. The email is lowercased, the
// phone and CPF are reduced to digits. All four fields are required at
// checkout.
func New(name, email, phone, cpf string) (Info, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 3 {
		return Info{}, domain.Invalid("name", "Nome do cliente é obrigatório")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return Info{}, domain.Invalid("email", "Email inválido")
	}

	phone = digitsOnly(phone)
	if len(phone) < 10 || len(phone) > 11 {
		return Info{}, domain.Invalid("phone", "Telefone inválido")
	}

	cpf = digitsOnly(cpf)
	if !ValidCPF(cpf) {
		return Info{}, domain.Invalid("cpf", "CPF inválido")
	}

	return Info{Name: name, Email: email, Phone: phone, CPF: cpf}, nil
}

// ValidEmail reports whether value looks like a deliverable email address.
func ValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// ValidCPF reports whether value is a well-formed Brazilian CPF. It accepts
// formatted ("529.982.247-25") or bare digit input and applies the standard
// check-digit algorithm. Sequences of a single repeated digit (such as
// "111.111.111-11") pass the arithmetic but are not valid documents and are
// rejected.
func ValidCPF(value string) bool {
	cpf := digitsOnly(value)
	if len(cpf) != 11 {
		return false
	}
	allSame := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	if checkDigit(cpf, 10) != int(cpf[9]-'0') {
		return false
	}
	return checkDigit(cpf, 11) == int(cpf[10]-'0')
}

// checkDigit computes one CPF verifier digit. factor is 10 for the first
// digit and 11 for the second.
func checkDigit(cpf string, factor int) int {
	total := 0
	for i := 0; i < factor-1; i++ {
		total += int(cpf[i]-'0') * (factor - i)
	}
	remainder := (total * 10) % 11
	if remainder == 10 {
		return 0
	}
	return remainder
}

func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskCPF renders a CPF for order summaries and logs. Only the first three
// digits stay visible; the rest is hidden in the standard CPF shape
// ("123.***.***-**").
func MaskCPF(value string) string {
	digits := digitsOnly(value)
	switch {
	case digits == "":
		return ""
	case len(digits) <= 3:
		return digits
	default:
		return digits[:3] + ".***.***-**"
	}
}
