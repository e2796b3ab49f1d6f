// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package qa

import "fmt"

const qaSystem = "You are an expert at generating diverse question-answer pairs for document retrieval systems."

func singlePrompt(content, filename, mimeType string, numQuestions int) string {
	return fmt.Sprintf(`Generate %d diverse question-answer pairs for a document retrieval system.

## Document Information
- Filename: %s
- Type: %s

## Document Content
%s

## Guidelines
- Questions must be self-contained (understandable without context)
- Answers must be directly supported by the document - no assumptions
- Cover different sections and topics from the document
- Include diverse question types

## Question Types to Include
- **Factual**: Specific facts, numbers, dates, names (e.g., "What was the revenue in Q3?")
- **Overview**: General questions about purpose/topic (e.g., "What is this document about?")
- **Procedural**: How-to, processes, steps (e.g., "How do I submit a request?")
- **Comparison**: Comparing items, periods, options (e.g., "How does X compare to Y?")
- **Reasoning**: Why questions, causes, explanations (e.g., "Why did sales increase?")

## Required Output Format (JSON)
{
  "qa_pairs": [
    {
      "question": "The question text",
      "answer": "The answer based on document content",
      "type": "factual|overview|procedural|comparison|reasoning"
    }
  ]
}

Generate questions in the same language as the source document.`, numQuestions, filename, mimeType, content)
}

func sectionPrompt(title, content string, numQuestions int) string {
	return fmt.Sprintf(`Generate %d diverse question-answer pairs for this section.

## Section: %s

%s

Generate questions that:
- Are self-contained (understandable without context)
- Have answers directly supported by the section
- Cover different aspects of the section
- Include various types: factual, overview, procedural, comparison, reasoning

Return JSON format:
{
  "qa_pairs": [
    {
      "question": "The question text",
      "answer": "The answer based on section content",
      "type": "factual|overview|procedural|comparison|reasoning"
    }
  ]
}

Write questions in the same language as the document.`, numQuestions, title, content)
}
