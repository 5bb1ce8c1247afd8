// internal/domain/queue/dto.go
package queue

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// RoomRequest is the payload of join_room / leave_room.
type RoomRequest struct {
	EstablishmentID string `json:"establishment_id"`
}

// AddCustomerRequest is the payload of add_customer.
type AddCustomerRequest struct {
	EstablishmentID string `json:"establishment_id"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
}

// CustomerActionRequest is the payload of call_customer, remove_customer and get_status.
type CustomerActionRequest struct {
	EstablishmentID string `json:"establishment_id"`
	CustomerID      string `json:"customer_id"`
}

// SnapshotResponse is the REST view of an establishment's queue.
type SnapshotResponse struct {
	EstablishmentID string  `json:"establishment_id"`
	Entries         []Entry `json:"entries"`
	Stats           Stats   `json:"stats"`
}

const (
	maxNameLength = 255
	minPhoneLen   = 3
	maxPhoneLen   = 20
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]+$`)
	phoneStrip   = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// NormalizeEstablishmentID lower-cases a slug and checks it is URL-safe.
func NormalizeEstablishmentID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if !slugPattern.MatchString(id) {
		return "", fmt.Errorf("invalid establishment id %q", raw)
	}
	return id, nil
}

// NormalizePhone strips formatting so that the same number always dedups to one customer.
func NormalizePhone(raw string) (string, error) {
	phone := phoneStrip.Replace(strings.TrimSpace(raw))
	digits := strings.TrimPrefix(phone, "+")
	if !phonePattern.MatchString(phone) || len(digits) < minPhoneLen || len(digits) > maxPhoneLen {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return phone, nil
}

// NormalizeName trims a display name and bounds its length.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("name exceeds %d characters", maxNameLength)
	}
	return name, nil
}
