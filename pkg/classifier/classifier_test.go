package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/engram-ai/engram-go/pkg/classifier"
)

func TestClassifyCategories(t *testing.T) {
	testCases := []struct {
		text           string
		wantCategory   classifier.Category
		wantImportance float64
	}{
		{"Remember to always reply in French", classifier.CategoryInstruction, 0.9},
		{"My name is Ada and I live in Berlin", classifier.CategoryPersonal, 0.8},
		{"I want to run a marathon next year", classifier.CategoryGoal, 0.75},
		{"I prefer dark mode", classifier.CategoryPreference, 0.7},
		{"I work as a data engineer", classifier.CategoryProfessional, 0.65},
		{"My sister moved to Lisbon", classifier.CategoryRelationship, 0.6},
		{"The project deadline got moved up", classifier.CategoryEvent, 0.55},
		{"Photosynthesis is the process plants use to make energy", classifier.CategoryKnowledge, 0.6},
	}

	for _, tc := range testCases {
		result := classifier.Classify(tc.text)
		assert.Equal(t, tc.wantCategory, result.Category, "text: %q", tc.text)
		assert.Equal(t, tc.wantImportance, result.Importance, "text: %q", tc.text)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	result := classifier.Classify("sdkfjh qwerty zxcvb")
	assert.Equal(t, classifier.CategoryKnowledge, result.Category)
	assert.Equal(t, 0.4, result.Importance)
}

func TestClassifyPriorityOrder(t *testing.T) {
	// Both an instruction phrase and a preference phrase; instruction wins.
	result := classifier.Classify("Remember that I prefer dark mode")
	assert.Equal(t, classifier.CategoryInstruction, result.Category)

	// Personal outranks professional.
	result = classifier.Classify("My name is Ada and I work at a bank")
	assert.Equal(t, classifier.CategoryPersonal, result.Category)
}

func TestClassifyDeterministic(t *testing.T) {
	text := "I prefer tea over coffee in the morning"
	first := classifier.Classify(text)
	second := classifier.Classify(text)
	assert.Equal(t, first, second)
}

func TestExtractKeywords(t *testing.T) {
	keywords := classifier.ExtractKeywords("I prefer Dark Mode, dark mode is great!")
	assert.Equal(t, []string{"prefer", "dark", "mode", "great"}, keywords)
}

func TestExtractKeywordsDropsStopwords(t *testing.T) {
	keywords := classifier.ExtractKeywords("the and of to a in")
	assert.Empty(t, keywords)
}

func TestDefaultImportance(t *testing.T) {
	assert.Equal(t, 0.9, classifier.DefaultImportance(classifier.CategoryInstruction))
	assert.Equal(t, 0.7, classifier.DefaultImportance(classifier.CategoryPreference))
	assert.Equal(t, 0.6, classifier.DefaultImportance(classifier.CategoryKnowledge))
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, classifier.CategoryPreference.Valid())
	assert.False(t, classifier.Category("bogus").Valid())
}
