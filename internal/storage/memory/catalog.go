// Package memory provides in-memory repository implementations. The product
// catalog is small and fixed, so it lives in process memory and is constructed
// once at startup and passed to whatever needs it.
package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain/catalog"
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository serves the static VZ Dolci product catalog.
type CatalogRepository struct {
	products []catalog.Product
	byID     map[string]*catalog.Product
}

// NewCatalogRepository builds the repository with the given products. When
// called with no products it loads the default catalog.
func NewCatalogRepository(products ...catalog.Product) *CatalogRepository {
	if len(products) == 0 {
		products = defaultCatalog()
	}
	byID := make(map[string]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &CatalogRepository{products: products, byID: byID}
}

// List returns all catalog products in display order.
func (r *CatalogRepository) List(_ context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

// GetByID returns a single product, or catalog.ErrNotFound.
func (r *CatalogRepository) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func defaultCatalog() []catalog.Product {
	price := decimal.RequireFromString("14.00")
	return []catalog.Product{
		{
			ID:          "crema-cotta-abacaxi",
			Name:        "Crema Cotta de Abacaxi",
			Description: "Crema Cotta é inspirada no doce italiano Panna Cotta. É um doce à base de leite com uma geléia artesanal de abacaxi por cima.",
			Price:       price,
			Ingredients: "Creme à base de leite, geléia artesanal de abacaxi",
			Story:       "A clássica Crema Cotta com o frescor tropical do abacaxi em geléia artesanal",
			Image:       "/images/crema-cotta-abacaxi.webp",
		},
		{
			ID:          "crema-cotta-morango",
			Name:        "Crema Cotta de Morango",
			Description: "Crema Cotta é inspirada no doce italiano Panna Cotta. É um doce à base de leite com uma geléia artesanal de morango por cima.",
			Price:       price,
			Ingredients: "Creme à base de leite, geléia artesanal de morango",
			Story:       "Camadas suaves de creme de leite com cobertura de morango feito artesanalmente",
			Image:       "/images/crema-cotta-morango.webp",
		},
		{
			ID:          "crema-cotta-maracuja",
			Name:        "Crema Cotta de Maracujá",
			Description: "Crema Cotta é inspirada no doce italiano Panna Cotta. É um doce à base de leite com uma geléia artesanal de maracujá por cima.",
			Price:       price,
			Ingredients: "Creme à base de leite, geléia artesanal de maracujá",
			Story:       "O equilíbrio perfeito do creme de leite com a acidez do maracujá em geléia artesanal",
			Image:       "/images/crema-cotta-maracuja.webp",
		},
		{
			ID:          "strati-di-moca",
			Name:        "Strati di Moca",
			Description: "Doce inspirado na bebida de café Mocaccino. Três camadas: creme aveludado de café, creme branco à base de leite e redução de coco.",
			Price:       price,
			Ingredients: "Creme de café, creme branco à base de leite, redução de coco",
			Story:       "Um doce trifásico que combina café aveludado, creme de leite e coco reduzido",
			Image:       "/images/strati-di-moca.webp",
		},
	}
}
