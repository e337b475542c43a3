package suggest

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jwalitptl/chairside/internal/model"
)

var promptTemplate = template.Must(template.New("suggest").Parse(`You are an AI assistant helping a dentist schedule appointments.

Based on the client history, appointment notes, and desired appointment length, suggest the optimal time slots from the available options.
Consider preparation and documentation needs when making your suggestions. Explain the reasoning for each suggestion.
Only suggest slots from the list below and keep every timestamp exactly as given.

Client History: {{.ClientHistory}}
Appointment Notes: {{.AppointmentNotes}}
Desired Appointment Length (minutes): {{.DesiredAppointmentLengthMinutes}}
Available Time Slots: {{.Slots}}

Format your response as a JSON array of objects, each with a startTime, endTime, and reason field.
`))

// RenderPrompt builds the model prompt for req.
func RenderPrompt(req model.SuggestionRequest) (string, error) {
	slots, err := json.Marshal(req.AvailableTimeSlots)
	if err != nil {
		return "", fmt.Errorf("failed to encode slots: %w", err)
	}

	var sb strings.Builder
	err = promptTemplate.Execute(&sb, struct {
		model.SuggestionRequest
		Slots string
	}{req, string(slots)})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}
