package resource

import "time"

// Type classifies a resource.
type Type string

// Resource types.
const (
	TypeEquipment      Type = "equipamento"
	TypeVehicle        Type = "veiculo"
	TypeSecurityDevice Type = "dispositivo_seguranca"
)

// AllTypes returns every valid resource type.
func AllTypes() []Type {
	return []Type{TypeEquipment, TypeVehicle, TypeSecurityDevice}
}

// Status is the operational state of a resource.
type Status string

// Resource statuses.
const (
	StatusAvailable   Status = "disponivel"
	StatusInUse       Status = "em_uso"
	StatusMaintenance Status = "em_manutencao"
	StatusActive      Status = "ativo"
	StatusInactive    Status = "inativo"
)

// AllStatuses returns every valid resource status.
func AllStatuses() []Status {
	return []Status{StatusAvailable, StatusInUse, StatusMaintenance, StatusActive, StatusInactive}
}

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Resource is an inventory item.
//
// AcquisitionDate and LastMaintenanceDate are calendar dates in DateLayout.
// Empty SerialNumber, Plate and LastMaintenanceDate mean "not set".
type Resource struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Type                Type      `json:"type"`
	SerialNumber        string    `json:"serial_number,omitempty"`
	Plate               string    `json:"plate,omitempty"`
	Location            string    `json:"location"`
	Status              Status    `json:"status"`
	AcquisitionDate     string    `json:"acquisition_date"`
	LastMaintenanceDate string    `json:"last_maintenance_date,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Type     Type
	Status   Status
	Location string
}

// Patch is a partial update. Nil fields are left unchanged.
// For the optional fields a pointer to "" clears the stored value.
type Patch struct {
	Name                *string
	Type                *Type
	SerialNumber        *string
	Plate               *string
	Location            *string
	Status              *Status
	AcquisitionDate     *string
	LastMaintenanceDate *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.SerialNumber == nil && p.Plate == nil &&
		p.Location == nil && p.Status == nil && p.AcquisitionDate == nil && p.LastMaintenanceDate == nil
}

// Apply copies the set fields onto r.
func (p Patch) Apply(r *Resource) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.SerialNumber != nil {
		r.SerialNumber = *p.SerialNumber
	}
	if p.Plate != nil {
		r.Plate = *p.Plate
	}
	if p.Location != nil {
		r.Location = *p.Location
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AcquisitionDate != nil {
		r.AcquisitionDate = *p.AcquisitionDate
	}
	if p.LastMaintenanceDate != nil {
		r.LastMaintenanceDate = *p.LastMaintenanceDate
	}
}
