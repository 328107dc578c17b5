package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kafadas/kinjo/internal/model"
)

func ptr(s string) *string { return &s }

func TestRedactor_PseudonymsInFirstSeenOrder(t *testing.T) {
	r := New([]*model.Person{
		{PersonID: "p1", DisplayName: "Alice", Aliases: []string{"Ali"}},
		{PersonID: "p2", DisplayName: "Bob Stone"},
	})

	got := r.Texts([]string{
		"Bob Stone helped me move",
		"coffee with alice and bob stone",
		"Ali brought soup",
	})
	assert.Equal(t, []string{
		"Person A helped me move",
		"coffee with Person B and Person A",
		"Person B brought soup",
	}, got)
}

func TestRedactor_MergedPeopleSharePseudonym(t *testing.T) {
	r := New([]*model.Person{
		{PersonID: "p1", DisplayName: "Sam", MergedInto: ptr("p2")},
		{PersonID: "p2", DisplayName: "Samantha"},
	})
	assert.Equal(t, "Person A thanked Person A", r.Text("Samantha thanked Sam"))
}

func TestRedactor_MasksContactDetails(t *testing.T) {
	r := New(nil)
	got := r.Text("mail jo.doe+x@example.com or call +1 (555) 123-4567 today")
	assert.Equal(t, "mail [email] or call [phone] today", got)
}

func TestRedactor_WordBoundaries(t *testing.T) {
	r := New([]*model.Person{{PersonID: "p1", DisplayName: "Al"}})
	assert.Equal(t, "Also Person A", r.Text("Also Al"))
}

func TestRedactor_NonASCIINames(t *testing.T) {
	r := New([]*model.Person{
		{PersonID: "p1", DisplayName: "José"},
		{PersonID: "p2", DisplayName: "Zoë"},
		{PersonID: "p3", DisplayName: "Élodie"},
		{PersonID: "p4", DisplayName: "田中"},
	})

	got := r.Texts([]string{
		"Coffee with José today",
		"Zoë helped me move",
		"Élodie sent flowers",
		"田中さん helped",
		"josé and ÉLODIE again",
	})
	assert.Equal(t, []string{
		"Coffee with Person A today",
		"Person B helped me move",
		"Person C sent flowers",
		"Person Dさん helped",
		"Person A and Person C again",
	}, got)
}

func TestRedactor_NonASCIIWordBoundaries(t *testing.T) {
	r := New([]*model.Person{{PersonID: "p1", DisplayName: "Zoë"}, {PersonID: "p2", DisplayName: "Ré"}})
	assert.Equal(t, "Zoëlla met Rémi", r.Text("Zoëlla met Rémi"))
	assert.Equal(t, "(Person A), Person B!", r.Text("(Zoë), Ré!"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "A", label(0))
	assert.Equal(t, "Z", label(25))
	assert.Equal(t, "27", label(26))
}
