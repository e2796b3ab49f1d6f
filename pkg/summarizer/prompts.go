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

package summarizer

// Prompts support documents in any language; the model is instructed to
// answer in the language of the source text.

const sectionSummarySystem = `You are an expert document analyst. Your task is to create concise, accurate summaries of document sections.

Rules:
- Extract only the most important information
- Preserve specific numbers, dates, percentages, and names
- Keep summary to 3-5 sentences
- Be factual - no interpretations or opinions
- Write in the same language as the source text`

const sectionSummaryUser = `Summarize this section from a document.

## Section Title
%s

## Section Content
%s

## Instructions
Write a concise summary (3-5 sentences) capturing:
- Main topic/purpose of this section
- Key facts, numbers, or data points
- Important decisions, conclusions, or action items

Summary:`

const finalSummarySystem = `You are an expert document analyst. Your task is to create a comprehensive summary from multiple section summaries.

Rules:
- Create a unified, coherent narrative
- Do not repeat information
- Prioritize the most important points
- Maintain logical flow between topics
- Write in the same language as the source text`

const finalSummaryUser = `Create a comprehensive document summary from these section summaries.

## Document Title
%s

## Document Type
%s

## Section Summaries
%s

## Instructions
Write a complete summary with this structure:

### Overview
2-3 sentences describing what this document is about and its main purpose.

### Key Points
• Most important finding or information
• Second most important point
• Third most important point
(add more if needed, maximum 7 points)

### Important Data
List any critical numbers, dates, names, or statistics that should be remembered.

### Conclusions
Main takeaways, recommendations, or action items from the document.

Summary:`

const shortDocSummarySystem = `You are an expert document analyst. Create clear, accurate, and comprehensive summaries.

Rules:
- Focus on main ideas and key findings
- Preserve critical numbers, dates, names
- Be objective and factual
- Write in the same language as the source text`

const shortDocSummaryUser = `Summarize this document.

## Document Title
%s

## Document Type
%s

## Document Content
%s

## Instructions
Write a summary with this structure:

### Overview
2-3 sentences describing what this document is about.

### Key Points
• Most important information (3-7 bullet points)

### Important Data
Key numbers, dates, names, statistics worth remembering.

### Conclusions
Main takeaways or action items (if any).

Summary:`
