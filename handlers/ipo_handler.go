package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type IPOHandler struct {
	Catalog  database.Catalog
	PageSize int
}

func NewIPOHandler(catalog database.Catalog) *IPOHandler {
	return &IPOHandler{Catalog: catalog, PageSize: models.PageSize}
}

// ListCompanies returns one page of companies in the paginator's envelope
func (h *IPOHandler) ListCompanies(c *fiber.Ctx) error {
	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": detailInvalidPage})
		}
		page = parsed
	}

	companies, total, err := h.Catalog.ListCompanies(c.Context(), (page-1)*h.PageSize, h.PageSize)
	if err != nil {
		return h.internalError(c, "list", err)
	}

	// an empty first page is allowed, any other empty page is not
	lastPage := (total + h.PageSize - 1) / h.PageSize
	if page > 1 && page > lastPage {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": detailInvalidPage})
	}

	var next, previous interface{}
	if page < lastPage {
		next = h.pageLink(c, page+1)
	}
	if page > 1 {
		previous = h.pageLink(c, page-1)
	}

	return c.JSON(fiber.Map{
		"count":    total,
		"next":     next,
		"previous": previous,
		"results":  companies,
	})
}

// CreateCompany stores a company with its nested rounds and documents
func (h *IPOHandler) CreateCompany(c *fiber.Ctx) error {
	var company models.Company
	if err := c.BodyParser(&company); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	fields := validateCompany(&company)
	if len(fields) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fields)
	}

	created, err := h.Catalog.CreateCompany(c.Context(), company)
	if err != nil {
		return h.internalError(c, "create", err)
	}

	logrus.WithFields(logrus.Fields{
		"component":  "IPOHandler",
		"company_id": created.ID,
	}).Info("Company created")
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetRound returns one round
func (h *IPOHandler) GetRound(c *fiber.Ctx) error {
	roundID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	round, err := h.Catalog.GetRound(c.Context(), int64(roundID))
	if database.IsNotFound(err) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		return h.internalError(c, "get", err)
	}
	return c.JSON(round)
}

// UpdateRound replaces one round, including its documents
func (h *IPOHandler) UpdateRound(c *fiber.Ctx) error {
	roundID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	// the target must exist before the body is validated
	if _, err := h.Catalog.GetRound(c.Context(), int64(roundID)); database.IsNotFound(err) {
		return c.SendStatus(fiber.StatusNotFound)
	}

	var round models.IPORound
	if err := c.BodyParser(&round); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if fields := validateRound(&round, ""); len(fields) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fields)
	}

	updated, err := h.Catalog.UpdateRound(c.Context(), int64(roundID), round)
	if database.IsNotFound(err) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		return h.internalError(c, "update", err)
	}
	return c.JSON(updated)
}

// DeleteRound removes one round; the company stays even with no rounds left
func (h *IPOHandler) DeleteRound(c *fiber.Ctx) error {
	roundID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	err = h.Catalog.DeleteRound(c.Context(), int64(roundID))
	if database.IsNotFound(err) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		return h.internalError(c, "delete", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *IPOHandler) pageLink(c *fiber.Ctx, page int) string {
	return fmt.Sprintf("%s%s?page=%d", c.BaseURL(), c.Path(), page)
}

func (h *IPOHandler) internalError(c *fiber.Ctx, operation string, err error) error {
	logrus.WithFields(logrus.Fields{
		"component": "IPOHandler",
		"operation": operation,
	}).WithError(err).Error("Catalog operation failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func validateCompany(company *models.Company) map[string][]string {
	fields := make(map[string][]string)
	if strings.TrimSpace(company.CompanyName) == "" {
		fields["company_name"] = []string{detailRequired}
	}
	for i := range company.Rounds {
		for key, messages := range validateRound(&company.Rounds[i], fmt.Sprintf("ipos.%d.", i)) {
			fields[key] = messages
		}
	}
	return fields
}

// validateRound checks the status choice and normalises its case
func validateRound(round *models.IPORound, prefix string) map[string][]string {
	fields := make(map[string][]string)
	if round.Status == "" {
		round.Status = string(models.StatusPending)
	}
	status, ok := models.ParseRoundStatus(round.Status)
	if !ok {
		fields[prefix+"status"] = []string{fmt.Sprintf("%q is not a valid choice.", round.Status)}
		return fields
	}
	round.Status = string(status)
	return fields
}
