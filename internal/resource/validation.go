package resource

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Validation constants.
const (
	maxNameLength     = 255
	maxLocationLength = 255
	maxCodeLength     = 255 // serial numbers and plates
)

// Pre-computed validation sets.
var (
	validTypes    = make(map[Type]struct{})
	validStatuses = make(map[Status]struct{})
)

func init() {
	for _, t := range AllTypes() {
		validTypes[t] = struct{}{}
	}
	for _, s := range AllStatuses() {
		validStatuses[s] = struct{}{}
	}
}

// Normalise trims surrounding whitespace from the free-text fields.
func Normalise(r *Resource) {
	r.Name = strings.TrimSpace(r.Name)
	r.Location = strings.TrimSpace(r.Location)
	r.SerialNumber = strings.TrimSpace(r.SerialNumber)
	r.Plate = strings.TrimSpace(r.Plate)
	r.AcquisitionDate = strings.TrimSpace(r.AcquisitionDate)
	r.LastMaintenanceDate = strings.TrimSpace(r.LastMaintenanceDate)
}

// Validate checks a resource and returns the first failure found, wrapping ErrInvalid.
func Validate(r *Resource) error {
	if r == nil {
		return ErrInvalid
	}

	var missing []string
	if r.Name == "" {
		missing = append(missing, "name")
	}
	if r.Type == "" {
		missing = append(missing, "type")
	}
	if r.Location == "" {
		missing = append(missing, "location")
	}
	if r.Status == "" {
		missing = append(missing, "status")
	}
	if r.AcquisitionDate == "" {
		missing = append(missing, "acquisition_date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalid, strings.Join(missing, ", "))
	}

	if len(r.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalid, maxNameLength)
	}
	if len(r.Location) > maxLocationLength {
		return fmt.Errorf("%w: location exceeds %d characters", ErrInvalid, maxLocationLength)
	}
	if len(r.SerialNumber) > maxCodeLength || len(r.Plate) > maxCodeLength {
		return fmt.Errorf("%w: serial_number and plate must not exceed %d characters", ErrInvalid, maxCodeLength)
	}

	if err := ValidateType(r.Type); err != nil {
		return err
	}
	if err := ValidateStatus(r.Status); err != nil {
		return err
	}

	if err := validateDate("acquisition_date", r.AcquisitionDate); err != nil {
		return err
	}
	if r.LastMaintenanceDate != "" {
		if err := validateDate("last_maintenance_date", r.LastMaintenanceDate); err != nil {
			return err
		}
	}

	return nil
}

// ValidateType checks t against the closed set of resource types.
func ValidateType(t Type) error {
	if _, ok := validTypes[t]; !ok {
		return fmt.Errorf("%w: type %q must be one of %v", ErrInvalid, t, AllTypes())
	}
	return nil
}

// ValidateStatus checks s against the closed set of resource statuses.
func ValidateStatus(s Status) error {
	if _, ok := validStatuses[s]; !ok {
		return fmt.Errorf("%w: status %q must be one of %v", ErrInvalid, s, AllStatuses())
	}
	return nil
}

func validateDate(field, value string) error {
	if _, err := time.Parse(DateLayout, value); err != nil {
		return fmt.Errorf("%w: %s must be a date in YYYY-MM-DD format", ErrInvalid, field)
	}
	return nil
}

// DecodePatch parses a JSON object into a Patch.
//
// Only keys present in the object are set. JSON null or "" clears
// serial_number, plate and last_maintenance_date; null is rejected for the
// required fields. Unknown keys are ignored.
func DecodePatch(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Patch{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalid)
	}

	var p Patch
	var err error

	required := func(key string) (*string, error) {
		msg, ok := raw[key]
		if !ok {
			return nil, nil
		}
		var s *string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalid, key)
		}
		if s == nil {
			return nil, fmt.Errorf("%w: %s cannot be null", ErrInvalid, key)
		}
		v := strings.TrimSpace(*s)
		return &v, nil
	}

	optional := func(key string) (*string, error) {
		msg, ok := raw[key]
		if !ok {
			return nil, nil
		}
		var s *string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, fmt.Errorf("%w: %s must be a string or null", ErrInvalid, key)
		}
		v := ""
		if s != nil {
			v = strings.TrimSpace(*s)
		}
		return &v, nil
	}

	if p.Name, err = required("name"); err != nil {
		return Patch{}, err
	}
	if p.Location, err = required("location"); err != nil {
		return Patch{}, err
	}
	if p.AcquisitionDate, err = required("acquisition_date"); err != nil {
		return Patch{}, err
	}

	typ, err := required("type")
	if err != nil {
		return Patch{}, err
	}
	if typ != nil {
		t := Type(*typ)
		p.Type = &t
	}

	status, err := required("status")
	if err != nil {
		return Patch{}, err
	}
	if status != nil {
		s := Status(*status)
		p.Status = &s
	}

	if p.SerialNumber, err = optional("serial_number"); err != nil {
		return Patch{}, err
	}
	if p.Plate, err = optional("plate"); err != nil {
		return Patch{}, err
	}
	if p.LastMaintenanceDate, err = optional("last_maintenance_date"); err != nil {
		return Patch{}, err
	}

	return p, nil
}
