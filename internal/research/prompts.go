package research

import (
	"encoding/json"
	"fmt"

	"github.com/prospect-labs/prospector/internal/llm"
)

// selectedURLsSchema constrains the URL-selection reply to a single field.
var selectedURLsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"selected_urls": {
			"type": "array",
			"items": {"type": "string"},
			"description": "Discussion thread URLs that contain valuable information for answering the user's question"
		}
	},
	"required": ["selected_urls"],
	"additionalProperties": false
}`)

// asJSON serializes a bundle for inclusion in a prompt. Serialization
// failures degrade to an explicit placeholder instead of aborting the stage.
func asJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "(results could not be serialized)"
	}
	return string(b)
}

func googleAnalysisMessages(question, results string) []llm.Message {
	return []llm.Message{
		llm.System("You are an expert research analyst. You are given raw Google search results " +
			"(knowledge panel and organic snippets) for a user question. Extract the facts that " +
			"answer the question, note the strength of the sourcing, and write a concise prose " +
			"analysis. If the results contain no useful data, say so plainly."),
		llm.User(fmt.Sprintf("Question: %s\n\nGoogle search results:\n%s", question, results)),
	}
}

func bingAnalysisMessages(question, results string) []llm.Message {
	return []llm.Message{
		llm.System("You are an expert research analyst. You are given raw Bing search results " +
			"(knowledge panel and organic snippets) for a user question. Extract the facts that " +
			"answer the question, note the strength of the sourcing, and write a concise prose " +
			"analysis. If the results contain no useful data, say so plainly."),
		llm.User(fmt.Sprintf("Question: %s\n\nBing search results:\n%s", question, results)),
	}
}

func redditAnalysisMessages(question, posts, comments string) []llm.Message {
	return []llm.Message{
		llm.System("You are an expert at reading community discussions. You are given Reddit " +
			"threads discovered for a user question, plus retrieved comments from the most " +
			"relevant threads. Summarize what the community actually recommends or believes, " +
			"including dissenting opinions. If there is no usable discussion data, say so plainly."),
		llm.User(fmt.Sprintf("Question: %s\n\nDiscovered threads:\n%s\n\nRetrieved comments:\n%s",
			question, posts, comments)),
	}
}

func urlSelectionMessages(question, posts string) []llm.Message {
	return []llm.Message{
		llm.System("You select which discussion threads are worth retrieving in full. Given a " +
			"user question and a list of Reddit threads (title and url), return only the URLs of " +
			"threads likely to contain substantive answers. Prefer a handful of highly relevant " +
			"threads over many marginal ones."),
		llm.User(fmt.Sprintf("Question: %s\n\nThreads:\n%s", question, posts)),
	}
}

func synthesisMessages(question, googleAnalysis, bingAnalysis, redditAnalysis string) []llm.Message {
	return []llm.Message{
		llm.System("You synthesize research findings into one final answer. You are given " +
			"per-source analyses of Google results, Bing results, and Reddit community " +
			"discussion for the same question. Combine them into a single coherent answer, " +
			"reconciling disagreements and noting where the community view diverges from the " +
			"search results. An analysis marked unavailable contributes nothing; do not " +
			"speculate about what it might have said."),
		llm.User(fmt.Sprintf(
			"Question: %s\n\nGoogle analysis:\n%s\n\nBing analysis:\n%s\n\nReddit community analysis:\n%s",
			question, googleAnalysis, bingAnalysis, redditAnalysis)),
	}
}
