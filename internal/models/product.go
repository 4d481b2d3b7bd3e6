package models

import (
	"fmt"
	"time"
)

type ProductType string

const (
	ProductTypeCertificate ProductType = "certificate"
	ProductTypeCredential  ProductType = "credential"
	ProductTypeEnrollment  ProductType = "enrollment"
)

func ParseProductType(s string) (ProductType, error) {
	switch t := ProductType(s); t {
	case ProductTypeCertificate, ProductTypeCredential, ProductTypeEnrollment:
		return t, nil
	default:
		return "", fmt.Errorf("unknown product type %q", s)
	}
}

type Product struct {
	ID        string      `json:"id" db:"id"`
	Title     string      `json:"title" db:"title"`
	Type      ProductType `json:"type" db:"type"`
	Price     int64       `json:"price" db:"price"`
	Currency  string      `json:"currency" db:"currency"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

func (p *Product) IsCertificate() bool {
	return p.Type == ProductTypeCertificate
}
