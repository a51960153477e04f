package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hermagulator/shopbot/api/responses"
	"github.com/hermagulator/shopbot/api/validators"
	catalogsvc "github.com/hermagulator/shopbot/internal/catalog"
	"github.com/hermagulator/shopbot/pkg/db/models"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/logger"
)

type productResponse struct {
	ID           uuid.UUID  `json:"id"`
	CategoryID   *uuid.UUID `json:"category_id,omitempty"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Price        string     `json:"price"`
	AvailableQty int        `json:"available_qty"`
	IsActive     bool       `json:"is_active"`
}

func newProductResponse(product *models.Product) productResponse {
	return productResponse{
		ID:           product.ID,
		CategoryID:   product.CategoryID,
		Name:         product.Name,
		Description:  product.Description,
		Price:        product.Price.StringFixed(2),
		AvailableQty: product.AvailableQty,
		IsActive:     product.IsActive,
	}
}

type categoryResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func ProductList(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := validators.ParseQueryUUID(r, "category_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.ListProducts(r.Context(), categoryID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(products))
		for i := range products {
			out = append(out, newProductResponse(&products[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func ProductGet(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

func CategoryList(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]categoryResponse, 0, len(categories))
		for _, category := range categories {
			out = append(out, categoryResponse{ID: category.ID, Name: category.Name})
		}
		responses.WriteSuccess(w, out)
	}
}
