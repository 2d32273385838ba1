package analyze

import (
	"bytes"
	"encoding/json"
	"strings"

	pkgcatalog "github.com/HerbHall/faceanalyzer/pkg/catalog"
)

const (
	detectMaxTokens    = 500
	recommendMaxTokens = 1500
)

var detectSystemPrompt = strings.Join([]string{
	"You are an expert facial analysis AI.",
	"Analyze the provided image of a face. List all observed skin conditions, signs of aging, and potential areas for aesthetic enhancement.",
	"You MUST respond with a single, valid JSON object.",
	`This JSON object MUST have a single key named "detected_features".`,
	`The value of "detected_features" MUST be a JSON array of strings (e.g., ["forehead wrinkles", "dull skin tone", "uneven pigmentation", "desire for fuller lips"]).`,
	"Focus on actionable observations relevant for aesthetic treatments. Be concise. Include both problems and desired enhancements. Use descriptive phrases.",
	"Do NOT include any introductory text, concluding remarks, markdown formatting, or any other text outside of the JSON object.",
}, "\n")

const detectUserPrompt = "Analyze this image and list detected features (both problems and desired enhancements) for aesthetic recommendations. Be specific and use common aesthetic terms."

var recommendSystemPrompt = strings.Join([]string{
	"You are a medical-aesthetic assistant.",
	"You MUST respond with a single, valid JSON object.",
	`This JSON object MUST have a key named "recommendations".`,
	`The value of "recommendations" MUST be a JSON array of objects.`,
	`Each object in the "recommendations" array MUST have keys: "service_name" (string), "type" (string: "Problem-Solving" or "Aesthetic Enhancement"), "explanation" (string), and "relevant_features" (array of strings).`,
	`The "explanation" should be based on the service details provided (problems_treated, enhancements, description) and clearly link to the detected_features.`,
	`Determine the "type" based on whether the primary detected features it addresses are problems or enhancements. If it addresses both, lean towards the primary reason for recommendation based on the detected features.`,
	"Do NOT include any introductory text, concluding remarks, markdown formatting, or any other text outside of the JSON object.",
}, "\n")

// candidateListing renders the shortlist for the refinement prompt.
func candidateListing(services []pkgcatalog.Service) string {
	var b strings.Builder
	b.WriteString("Based on an initial analysis, the following services are potentially suitable. Please refine these into final recommendations. For each service, consider its listed problems_treated and enhancements:\n")
	for _, s := range services {
		b.WriteString("- Service: " + s.Name + "\n")
		b.WriteString("  Description: " + orNA(s.Description) + "\n")
		b.WriteString("  Problems Treated: " + orNA(strings.Join(s.ProblemsTreated, "; ")) + "\n")
		b.WriteString("  Enhancements: " + orNA(strings.Join(s.Enhancements, "; ")) + "\n")
	}
	return b.String()
}

// recommendUserPrompt builds the refinement request for the detected
// features and shortlisted services.
func recommendUserPrompt(features []string, services []pkgcatalog.Service) string {
	var b strings.Builder
	b.WriteString("The image analysis detected these features: " + compactJSON(features) + ".\n\n")
	b.WriteString(candidateListing(services))
	b.WriteString("\n\nFrom the list of potentially suitable services, select up to 3-4 final recommendations. For each:\n")
	b.WriteString(`1. State "service_name".` + "\n")
	b.WriteString(`2. Determine "type" as "Problem-Solving" or "Aesthetic Enhancement" based on the detected features it primarily addresses and the service's capabilities.` + "\n")
	b.WriteString(`3. Write an "explanation" that clearly links the service (using its description, problems_treated, and enhancements) to the specific detected_features it addresses. Make the explanation concise and informative.` + "\n")
	b.WriteString(`4. List the "relevant_features" (from the detected features list) that justify this service.`)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return strings.TrimSuffix(buf.String(), "\n")
}
