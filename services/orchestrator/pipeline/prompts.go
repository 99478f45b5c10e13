// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "fmt"

// Completion call tuning shared by both providers.
const (
	maxCompletionTokens   = 4000
	completionTemperature = 0.7
)

// defaultSEOKnowledge is the guidance injected into the system prompt when
// the caller supplies no knowledge base of their own.
const defaultSEOKnowledge = `
## Blog Structure & Length
- Optimal length: 1,500-2,500 words for best SEO performance
- Headline: 60-70 characters, include primary keyword near beginning
- Introduction: Hook reader in first 10-15 seconds, clear value proposition
- Body: Use H2/H3 headings hierarchically, 2-4 sentence paragraphs
- Conclusion: Summarize key takeaways, include clear call-to-action

## Content Quality Requirements
- Scannable format: 79% of users scan content, not read word-for-word
- Short paragraphs: 1-3 sentences max for mobile readability
- Bullet points/lists: Break up text, highlight key information
- Bold/italic: Emphasize important concepts (don't overuse)
- White space: Prevent overwhelming visual density

## SEO Optimization
- Primary keyword: Include naturally in headline, intro, headings
- Heading structure: H2/H3 tags that tell complete story when scanned
- Meta description: 150-160 characters, compelling and keyword-rich
- Internal links: Link to related content for better site structure
- External links: Include 2-3 authoritative sources for credibility

## Writing Approach
- Conversational tone: Use "you", contractions, rhetorical questions
- Active voice: More engaging than passive voice
- Concrete language: Specific words over vague generalities
- Evidence-based: Support claims with data, research, examples
- Actionable insights: Provide practical takeaways readers can implement`

const researchRequirements = `RESEARCH REQUIREMENTS:
- Find specific information about actual AI tools, companies, features, pricing
- Include recent statistics, case studies, and real-world examples
- Look for authoritative sources like official websites, tech publications, research papers
- Gather concrete data points, user testimonials, and comparison information`

// buildSystemPrompt assembles the system message for the completion call.
// The JSON response contract at the end is what the result extractor and
// the OpenAI json_object response format both rely on.
func buildSystemPrompt(prompt, knowledgeBase string, webSearch bool) string {
	seoKnowledge := knowledgeBase
	if seoKnowledge == "" {
		seoKnowledge = defaultSEOKnowledge
	}
	research := ""
	if webSearch {
		research = researchRequirements
	}

	return fmt.Sprintf(`You are a professional blog writer specializing in AI tools and technology. Write a comprehensive, well-researched blog post about: %s

%s

Follow these SEO guidelines:
%s

CRITICAL REQUIREMENTS:
1. Write 2,000-3,000 words of in-depth, valuable content
2. Use conversational tone with "you", contractions, and active voice
3. Include specific examples, real tools, actual features, and practical use cases

LINKING REQUIREMENTS (MUST FOLLOW):
- Internal links (3-5): Use format [descriptive text](/gpts) or [descriptive text](/documents) or [descriptive text](/blog)
- External links (2-3): Use format [source name](https://actual-url.com) - link to real websites
- Example: "Check out our [AI productivity tools](/gpts)" or "According to [OpenAI's research](https://openai.com/research)"
- DO NOT use citation-style references like [1], [2], [3] - always use proper markdown links
- DO NOT put numbers in square brackets - that's for academic papers, not blog posts

IMAGE PLACEHOLDERS:
- Add [IMAGE: specific description] where visuals would help
- Be specific about what should be shown (e.g., "[IMAGE: Screenshot of ChatGPT-4 interface with code generation example]")

STRUCTURE YOUR BLOG POST:
1. Title (60-70 chars, keyword near start, specific and compelling)
2. Introduction (150-200 words, hook + clear value proposition)
3. 5-8 main sections with descriptive H2 headings
4. Include lists, comparisons, step-by-step guides
5. Strong conclusion with clear call-to-action

TABLE FORMATTING (if using tables):
- Use proper markdown table syntax with pipes and hyphens
- Ensure columns align and all rows have same number of cells
- Keep cell content concise

FORMAT YOUR RESPONSE AS JSON:
{
  "title": "Specific, SEO-optimized title",
  "content": "# Title\\n\\n## Introduction\\n\\nEngaging intro...\\n\\n[Your full blog with proper markdown, real links, specific examples]",
  "meta_description": "150-160 character description with main keyword",
  "category": "Choose one: Business Planning, Productivity, Communication, Automation, Marketing, Design, Development, AI Tools, Strategy",
  "read_time": calculated number (total words / 200)
}

IMPORTANT: Include ACTUAL external links to real websites and proper internal links in the markdown format shown above.`,
		prompt, research, seoKnowledge)
}
