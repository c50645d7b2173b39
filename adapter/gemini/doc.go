// Package gemini adapts the Gemini API (google.golang.org/genai) to the aibridge content model.
//
// Translate returns a *Request holding the model, contents and GenerateContentConfig;
// ParseResponse reads a *genai.GenerateContentResponse. File URIs (gs:// and Files API) are sent
// as file data, other images inline. Function calls without an id get a generated one, and
// function responses are matched to their call by name through the request history.
//
// Reasoning budgets pass through as thinking budgets. GenerateImage uses Imagen.
// A failed stream yields an aibridge.ErrorBlock and ends without an error.
package gemini
