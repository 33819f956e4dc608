// Package resource manages the inventory of organisational resources:
// equipment, vehicles and security devices.
//
// Each resource has a closed type and status, a location, an acquisition
// date and an optional last maintenance date. Serial numbers and vehicle
// plates are optional but unique across the inventory when present.
//
// Usage:
//
//	repo := resource.NewRepository(db)
//
//	r := &resource.Resource{
//	    Name:            "Radio Base 3",
//	    Type:            resource.TypeSecurityDevice,
//	    Location:        "Gate B",
//	    Status:          resource.StatusActive,
//	    AcquisitionDate: "2025-11-04",
//	}
//	if err := resource.Validate(r); err != nil {
//	    return err
//	}
//	if err := repo.Create(ctx, r); err != nil {
//	    return err
//	}
//
// Partial updates are expressed as a Patch and applied in one transaction
// by Repository.Update.
package resource
