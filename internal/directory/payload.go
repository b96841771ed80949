package directory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ajitpratap0/facultyhub/internal/models"
)

// ErrValidation is returned when a request payload is malformed or incomplete.
var ErrValidation = errors.New("validation failed")

// ProfessorPayload is the accepted shape of a professor upsert request. Pointer
// fields distinguish "not supplied" from "supplied empty".
type ProfessorPayload struct {
	// ID is accepted so clients can post back records they read, and ignored.
	ID *string `json:"id,omitempty"`

	Email        string        `json:"email"`
	Name         *string       `json:"name,omitempty"`
	Position     *string       `json:"position,omitempty"`
	Degree       *string       `json:"degree,omitempty"`
	Branch       *string       `json:"branch,omitempty"`
	Department   *string       `json:"department,omitempty"`
	DepartmentID *string       `json:"departmentId,omitempty"`
	Description  *string       `json:"description,omitempty"`
	Photo        *string       `json:"photo,omitempty"`
	Links        *models.Links `json:"links,omitempty"`
	Research     *[]string     `json:"research,omitempty"`
	Projects     *[]string     `json:"projects,omitempty"`
	Companies    *[]string     `json:"companies,omitempty"`
	Websites     *[]string     `json:"websites,omitempty"`
	Institutes   *[]string     `json:"institutes,omitempty"`

	// Display names used only when the engine has to create or rename the
	// referenced branch or department. Never stored on the professor.
	BranchName     *string `json:"branchName,omitempty"`
	DepartmentName *string `json:"departmentName,omitempty"`
}

// DecodeProfessorPayload reads a JSON professor payload, rejecting unknown fields.
func DecodeProfessorPayload(r io.Reader) (ProfessorPayload, error) {
	var p ProfessorPayload
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return ProfessorPayload{}, fmt.Errorf("%w: decoding professor: %w", ErrValidation, err)
	}
	if dec.More() {
		return ProfessorPayload{}, fmt.Errorf("%w: trailing data after professor object", ErrValidation)
	}
	if err := p.Validate(); err != nil {
		return ProfessorPayload{}, err
	}
	return p, nil
}

// ParseProfessorPayload decodes a payload held in memory.
func ParseProfessorPayload(data []byte) (ProfessorPayload, error) {
	return DecodeProfessorPayload(bytes.NewReader(data))
}

// Validate checks the required fields.
func (p *ProfessorPayload) Validate() error {
	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	return nil
}

// Patch converts the payload into a store patch containing only supplied fields.
func (p ProfessorPayload) Patch() models.ProfessorPatch {
	patch := models.ProfessorPatch{
		Name:         p.Name,
		Position:     p.Position,
		Degree:       p.Degree,
		Branch:       p.Branch,
		Department:   p.Department,
		DepartmentID: p.DepartmentID,
		Description:  p.Description,
		Photo:        p.Photo,
		Links:        p.Links,
	}
	if p.Research != nil {
		patch.Research, patch.HasResearch = *p.Research, true
	}
	if p.Projects != nil {
		patch.Projects, patch.HasProjects = *p.Projects, true
	}
	if p.Companies != nil {
		patch.Companies, patch.HasCompanies = *p.Companies, true
	}
	if p.Websites != nil {
		patch.Websites, patch.HasWebsites = *p.Websites, true
	}
	if p.Institutes != nil {
		patch.Institutes, patch.HasInstitutes = *p.Institutes, true
	}
	return patch
}

func (p ProfessorPayload) branchID() string {
	return deref(p.Branch)
}

func (p ProfessorPayload) departmentID() string {
	return deref(p.DepartmentID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTrim(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
