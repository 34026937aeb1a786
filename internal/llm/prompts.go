package llm

// extractionPrompt asks for structured posting fields as strict JSON.
const extractionPrompt = `You are extracting structured information from a job description.
Return ONLY valid JSON with these fields:
{
  "primary_function": "TPM|PM|Platform|SRE|AI/ML|Other",
  "yoe_required": {"min": int, "max": int} | null,
  "work_mode": "remote|hybrid|onsite|unclear",
  "location": string,
  "relevance_score": number,
  "key_requirements": [string, ...]
}

Rules:
- relevance_score is 0.0 to 1.0 for Principal TPM targeting AI/Platform roles.
- If YOE not specified, return null.
- If location not specified, return "Unknown".
- Use "unclear" for work_mode if not explicit.

Job Description:
%s`
