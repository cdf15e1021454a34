package receipt

import "google.golang.org/genai"

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

const systemInstruction = "You are a receipt reader for a personal finance app.\n\n" +
	"Task:\n" +
	"- Read the attached receipt, invoice or transfer screenshot.\n" +
	"- Return ONE JSON object describing the transaction it shows.\n\n" +
	"Fields:\n" +
	"- \"amount\": number, the total paid or received, without currency symbols\n" +
	"- \"category\": string, a short spending category such as \"Groceries\" or \"Transport\"\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"type\": \"debit\" when money was spent, \"credit\" when money was received\n" +
	"- \"description\": string, the merchant or a short summary\n\n" +
	"Rules:\n" +
	"- Use null for any field that cannot be read from the image.\n" +
	"- Return ONLY valid raw JSON. Do NOT use Markdown code fences.\n"

const userPrompt = "Extract the transaction from this image."

// responseSchema constrains the model output to the draft transaction shape.
func responseSchema() *genai.Schema {
	nullable := genai.Ptr(true)
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"amount":      {Type: genai.TypeNumber, Nullable: nullable},
			"category":    {Type: genai.TypeString, Nullable: nullable},
			"date":        {Type: genai.TypeString, Nullable: nullable},
			"type":        {Type: genai.TypeString, Nullable: nullable, Enum: []string{"debit", "credit"}},
			"description": {Type: genai.TypeString, Nullable: nullable},
		},
		PropertyOrdering: []string{"amount", "category", "date", "type", "description"},
	}
}

func generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
		Temperature:       genai.Ptr[float32](0),
	}
}
