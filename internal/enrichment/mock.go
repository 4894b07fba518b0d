package enrichment

import (
	"hash/fnv"
	"strings"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/normalize"
)

var (
	mockFirstNames = []string{"Julie", "Sophie", "Camille", "Nathalie", "Isabelle", "Claire", "Thomas", "Marc", "Aurelie", "Laurent"}
	mockLastNames  = []string{"Martin", "Bernard", "Dubois", "Laurent", "Moreau", "Lefebvre", "Girard", "Rousseau", "Fontaine", "Mercier"}
	mockTitles     = []string{
		"Assistante de direction",
		"Office Manager",
		"Responsable des achats",
		"Responsable des services généraux",
		"Facility Manager",
		"Responsable administratif",
		"Directrice des opérations",
	}
	mockDepartments = []string{"Direction", "Achats", "Services généraux", "Administration", "Opérations"}
)

// mockContacts synthesizes 3 to 5 contacts. The same signal always yields the
// same contacts.
func mockContacts(sig *model.Signal) []model.Contact {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sig.ID))
	_, _ = h.Write([]byte(sig.CompanyName))
	seed := h.Sum64()

	domain := companySlug(sig.CompanyName) + ".fr"
	n := 3 + int(seed%3)

	contacts := make([]model.Contact, 0, n)
	for i := 0; i < n; i++ {
		first := mockFirstNames[(seed>>(i*4)+uint64(i))%uint64(len(mockFirstNames))]
		last := mockLastNames[(seed>>(i*5+3)+uint64(i*7))%uint64(len(mockLastNames))]
		title := mockTitles[(int(seed%uint64(len(mockTitles)))+i)%len(mockTitles)]
		score := normalize.PriorityScore(title)

		contacts = append(contacts, model.Contact{
			FullName:         first + " " + last,
			FirstName:        first,
			LastName:         last,
			JobTitle:         title,
			Department:       mockDepartments[i%len(mockDepartments)],
			Location:         "Paris, France",
			EmailPrincipal:   strings.ToLower(first + "." + last + "@" + domain),
			IsPriorityTarget: normalize.IsPriority(score),
			PriorityScore:    score,
			OutreachStatus:   model.OutreachNew,
		})
	}
	return contacts
}

// companySlug keeps ASCII letters and digits of the lower-cased name.
func companySlug(name string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-':
			return '-'
		}
		return -1
	}, normalize.Fold(name))
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		return "entreprise"
	}
	return slug
}
