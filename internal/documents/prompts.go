package documents

import "fmt"

const imagePrompt = `Analyze this image for investigation purposes.

Identify:
1. What is shown in the image
2. Any suspicious elements or red flags
3. Text content (if any)
4. Authenticity indicators
5. Any manipulated or edited areas
6. Relevant details for fraud detection

Provide a detailed analysis.`

const pdfPrompt = `Analyze this PDF document for investigation purposes.

Extract and analyze:
1. Document type and purpose
2. Key information and data points
3. Red flags or suspicious elements
4. Authenticity indicators
5. Relevant contact information
6. Financial information (if any)
7. Legal disclaimers or fine print

Provide a comprehensive analysis with specific details.`

const screenshotPrompt = `Analyze this screenshot for potential scam indicators.

Look for:
1. Website design quality and professionalism
2. Grammar and spelling errors
3. Unrealistic promises or claims
4. Urgency tactics or pressure
5. Contact information legitimacy
6. Trust badges or certifications (are they real?)
7. Payment methods offered
8. Red flags in the visual design

Provide a detailed scam risk assessment.`

func keyPointsPrompt(analysis string) string {
	return fmt.Sprintf(`From this document analysis, extract 3-5 key points as a bullet list:

%s

Provide ONLY the bullet points, one per line, starting with a dash (-).`, analysis)
}

func redFlagsPrompt(analysis string) string {
	return fmt.Sprintf(`From this document analysis, identify any red flags or suspicious elements as a bullet list:

%s

Provide ONLY the red flags as bullet points, one per line, starting with a dash (-). If no red flags, respond with "None identified".`, analysis)
}

func structuredDataPrompt(analysis string) string {
	return fmt.Sprintf(`From this document analysis, extract structured data in JSON format:

%s

Extract any relevant:
- Company names
- Email addresses
- Phone numbers
- Addresses
- URLs
- Dates
- Financial figures
- Names of people

Return ONLY valid JSON. If no data found, return {}.`, analysis)
}
