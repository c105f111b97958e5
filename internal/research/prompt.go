package research

import (
	"fmt"
	"strings"
)

func searchPrompt(query string) string {
	return fmt.Sprintf(`Search the web for: "%s"

Provide comprehensive information including:
- Overview of findings
- Credibility indicators (positive or negative)
- Specific examples and evidence
- Source URLs where information was found

Format your response clearly with sources cited.`, query)
}

func summaryPrompt(targetName string, searches []Search) string {
	parts := make([]string, len(searches))
	for i, s := range searches {
		parts[i] = fmt.Sprintf("Query: %s\nResults: %s", s.Query, s.Results)
	}
	return fmt.Sprintf(`Based on the following web research about "%s", provide a comprehensive 3-4 paragraph summary:

%s

Focus on:
1. Overall legitimacy assessment
2. Key red flags or positive indicators
3. Consensus from multiple sources
4. Any conflicting information`, targetName, strings.Join(parts, "\n\n---\n\n"))
}

func findingsPrompt(searches []Search) string {
	results := make([]string, len(searches))
	for i, s := range searches {
		results[i] = s.Results
	}
	return fmt.Sprintf(`From the following research results, extract 5-10 key findings as a bullet-point list. Each finding should be a concise, specific fact or observation.

%s

Provide ONLY the bullet points, one per line, starting with a dash (-).`, strings.Join(results, "\n\n"))
}
