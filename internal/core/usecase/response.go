package usecase

import "github.com/kirillkom/bill-extractor/internal/core/domain"

// ExtractPayload returns the text of the first content unit of a message
// envelope. Checks run in a fixed order and the first failing one decides the
// error; nothing is coerced.
func ExtractPayload(resp *domain.ModelResponse) (string, error) {
	if resp == nil || resp.Output == nil {
		return "", domain.ErrNoOutput
	}
	message := resp.Output.Message
	if message == nil {
		return "", domain.ErrUnsupportedOutputVariant
	}
	if len(message.Content) == 0 {
		return "", domain.ErrEmptyContent
	}
	first := message.Content[0]
	if first.Text == nil {
		return "", domain.ErrUnsupportedContentVariant
	}
	return *first.Text, nil
}
