package router

import (
	"nexus-ai-be/pkg/llm"
)

const basePreamble = "You are a helpful AI assistant."

// SystemPrompt returns the preamble for a request type.
func SystemPrompt(t RequestType) string {
	switch t {
	case TypeDocument:
		return basePreamble + " When analyzing documents, be thorough and specific, referencing the actual content. " +
			"Provide detailed insights about the document's content, structure, and key information."
	case TypeImage:
		return basePreamble + " When analyzing images, describe what you see in detail, including objects, people, " +
			"text, colors, and composition."
	default:
		return basePreamble
	}
}

// GenerationOptions returns sampling options for a request type. Documents
// get a cooler temperature; documents and images a larger token budget.
func GenerationOptions(t RequestType) []llm.Option {
	temperature := 0.7
	maxTokens := 1000
	switch t {
	case TypeDocument:
		temperature = 0.3
		maxTokens = 2000
	case TypeImage:
		maxTokens = 2000
	}
	return []llm.Option{
		llm.WithTemperature(temperature),
		llm.WithTopP(0.9),
		llm.WithMaxTokens(maxTokens),
	}
}

// helpMessage answers a message that was only routing directives.
func helpMessage(p *ParsedPrompt) string {
	switch {
	case p.AdapterID != "":
		return "Adapter " + p.AdapterID + " selected. Type your question after the directive.\n\nExample: /adapter:" + p.AdapterID + " Summarize our return process."
	case p.Bypass:
		return "Bypass mode answers without searching your documents. Type your question after /bypass.\n\nExample: /bypass What is machine learning?"
	default:
		return "Please type your question."
	}
}

func guidance(subsystem string, fileName string) string {
	switch subsystem {
	case "vision":
		if fileName != "" {
			return "could not analyze the uploaded image " + fileName + ", please try again or describe it in text"
		}
		return "could not analyze the uploaded image, please try again or describe it in text"
	case "retrieval":
		return "the document index could not be searched, please try again shortly"
	case "adapter":
		return "the fine-tuned model failed, try again without the adapter"
	default:
		return "the language model is not reachable right now, please try again shortly"
	}
}
