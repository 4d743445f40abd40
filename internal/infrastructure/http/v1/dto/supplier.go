package dto

import "procura/internal/domain/supplier"

// CreateSupplierRequest is the body of POST /suppliers.
type CreateSupplierRequest struct {
	Code        string `json:"code" binding:"required,max=32"`
	Name        string `json:"name" binding:"required"`
	WHTSubject  bool   `json:"whtSubject"`
	WHTCategory string `json:"whtCategory" binding:"omitempty,oneof=standard services supplies equipment other"`
}

// ToCommand converts the request.
func (r CreateSupplierRequest) ToCommand() supplier.CreateCommand {
	return supplier.CreateCommand{
		Code:        r.Code,
		Name:        r.Name,
		WHTSubject:  r.WHTSubject,
		WHTCategory: supplier.WHTCategory(r.WHTCategory),
	}
}
