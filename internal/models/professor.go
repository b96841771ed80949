package models

// Links groups a professor's external pages.
type Links struct {
	Awards  string `json:"awards,omitempty"`
	Webpage string `json:"webpage,omitempty"`
	Bio     string `json:"bio,omitempty"`
}

// Professor is a faculty record. Email is the natural identity; ID is assigned by the store.
type Professor struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Position     string   `json:"position,omitempty"`
	Degree       string   `json:"degree,omitempty"`
	Branch       string   `json:"branch,omitempty"`
	Department   string   `json:"department,omitempty"` // legacy free text
	DepartmentID string   `json:"departmentId,omitempty"`
	Description  string   `json:"description,omitempty"`
	Photo        string   `json:"photo,omitempty"`
	Links        Links    `json:"links"`
	Research     []string `json:"research"`
	Projects     []string `json:"projects"`
	Companies    []string `json:"companies"`
	Websites     []string `json:"websites"`
	Institutes   []string `json:"institutes"`
}

// NewProfessor returns a professor with every list field empty rather than nil.
func NewProfessor(id, email string) Professor {
	return Professor{
		ID:         id,
		Email:      email,
		Research:   []string{},
		Projects:   []string{},
		Companies:  []string{},
		Websites:   []string{},
		Institutes: []string{},
	}
}

// ProfessorPatch carries the fields of a professor upsert. A nil field was not supplied
// by the caller and must be left untouched in storage.
type ProfessorPatch struct {
	Name         *string
	Position     *string
	Degree       *string
	Branch       *string
	Department   *string
	DepartmentID *string
	Description  *string
	Photo        *string
	Links        *Links
	Research     []string
	Projects     []string
	Companies    []string
	Websites     []string
	Institutes   []string

	// The list fields need an explicit marker because a nil slice and an empty one
	// both decode from JSON but mean different things.
	HasResearch   bool
	HasProjects   bool
	HasCompanies  bool
	HasWebsites   bool
	HasInstitutes bool
}

// Apply writes every supplied field of the patch onto p.
func (pp ProfessorPatch) Apply(p *Professor) {
	setString(&p.Name, pp.Name)
	setString(&p.Position, pp.Position)
	setString(&p.Degree, pp.Degree)
	setString(&p.Branch, pp.Branch)
	setString(&p.Department, pp.Department)
	setString(&p.DepartmentID, pp.DepartmentID)
	setString(&p.Description, pp.Description)
	setString(&p.Photo, pp.Photo)
	if pp.Links != nil {
		p.Links = *pp.Links
	}
	if pp.HasResearch {
		p.Research = nonNil(pp.Research)
	}
	if pp.HasProjects {
		p.Projects = nonNil(pp.Projects)
	}
	if pp.HasCompanies {
		p.Companies = nonNil(pp.Companies)
	}
	if pp.HasWebsites {
		p.Websites = nonNil(pp.Websites)
	}
	if pp.HasInstitutes {
		p.Institutes = nonNil(pp.Institutes)
	}
}

// Columns returns the supplied fields keyed by their storage column name.
// String lists are returned as []string and links as Links.
func (pp ProfessorPatch) Columns() map[string]any {
	cols := make(map[string]any)
	putString(cols, "name", pp.Name)
	putString(cols, "position", pp.Position)
	putString(cols, "degree", pp.Degree)
	putString(cols, "branch", pp.Branch)
	putString(cols, "department", pp.Department)
	putString(cols, "department_id", pp.DepartmentID)
	putString(cols, "description", pp.Description)
	putString(cols, "photo", pp.Photo)
	if pp.Links != nil {
		cols["links"] = *pp.Links
	}
	if pp.HasResearch {
		cols["research"] = nonNil(pp.Research)
	}
	if pp.HasProjects {
		cols["projects"] = nonNil(pp.Projects)
	}
	if pp.HasCompanies {
		cols["companies"] = nonNil(pp.Companies)
	}
	if pp.HasWebsites {
		cols["websites"] = nonNil(pp.Websites)
	}
	if pp.HasInstitutes {
		cols["institutes"] = nonNil(pp.Institutes)
	}
	return cols
}

// PatchFromProfessor builds a patch that overwrites every field of p. Used by the seed.
func PatchFromProfessor(p Professor) ProfessorPatch {
	links := p.Links
	return ProfessorPatch{
		Name:          &p.Name,
		Position:      &p.Position,
		Degree:        &p.Degree,
		Branch:        &p.Branch,
		Department:    &p.Department,
		DepartmentID:  &p.DepartmentID,
		Description:   &p.Description,
		Photo:         &p.Photo,
		Links:         &links,
		Research:      p.Research,
		Projects:      p.Projects,
		Companies:     p.Companies,
		Websites:      p.Websites,
		Institutes:    p.Institutes,
		HasResearch:   true,
		HasProjects:   true,
		HasCompanies:  true,
		HasWebsites:   true,
		HasInstitutes: true,
	}
}

// Clone returns a deep copy of p.
func (p Professor) Clone() Professor {
	p.Research = CloneStrings(p.Research)
	p.Projects = CloneStrings(p.Projects)
	p.Companies = CloneStrings(p.Companies)
	p.Websites = CloneStrings(p.Websites)
	p.Institutes = CloneStrings(p.Institutes)
	return p
}

// Branch is a research group referenced by professors.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Department groups a set of branches.
type Department struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Branches []string `json:"branches"`
}

// HasBranch reports whether branchID is a member of the department.
func (d Department) HasBranch(branchID string) bool {
	for _, b := range d.Branches {
		if b == branchID {
			return true
		}
	}
	return false
}

// Company is a name collected from professors' company lists at seed time.
type Company struct {
	Name string `json:"name"`
}

// CloneStrings copies s, keeping nil as nil.
func CloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return CloneStrings(s)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func putString(cols map[string]any, key string, v *string) {
	if v != nil {
		cols[key] = *v
	}
}
