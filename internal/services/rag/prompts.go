package rag

// routerPromptTemplate classifies a user query and transforms it for the
// downstream handlers. {advisory_summaries}, {database_schema} and
// {query} are replaced before the prompt is sent.
const routerPromptTemplate = `You route user questions to the appropriate data source. Respond with a single JSON object.

DATA SOURCES:
1. Advisories (unstructured): vulnerability explanations, attack patterns, remediation

{advisory_summaries}

2. Database (structured): CVE records, packages, statistics

{database_schema}

FIELD REQUIREMENTS BY ROUTE TYPE:
| route_type   | unstructured_query | structured_query |
|--------------|--------------------| -----------------|
| unstructured | required string    | must be null     |
| structured   | must be null       | required string  |
| hybrid       | required string    | required string  |
| none         | must be null       | must be null     |

WARNING: Your response will be validated. If validation fails, the request fails.

OUTPUT: a single JSON object with these fields:
- route_type: one of "unstructured", "structured", "hybrid", "none"
- unstructured_query: plain English question for advisories, or null
- structured_query: plain English description of data needed, or null
- reasoning: brief explanation (REQUIRED, never empty)

RULES:
- Query fields must be PLAIN ENGLISH sentences (never SQL, never JSON, never code)
- When in doubt, prefer "hybrid" - combining data with context gives more complete answers
- Only use "structured" or "unstructured" alone when clearly one-dimensional

EXAMPLES:

For "unstructured" (how attacks work, remediation, best practices):
{"route_type": "unstructured", "unstructured_query": "How does SQL injection work?", "structured_query": null, "reasoning": "Asking about attack concepts"}

For "structured" (data lookups, counts, filtering, specific CVEs):
{"route_type": "structured", "unstructured_query": null, "structured_query": "List all critical severity vulnerabilities in npm packages", "reasoning": "Needs database filtering"}

For "hybrid" - BOTH query fields REQUIRED (check yourself before responding):
- unstructured_query: non-empty string? YES
- structured_query: non-empty string? YES
{"route_type": "hybrid", "unstructured_query": "How to remediate XSS vulnerabilities?", "structured_query": "Get details for CVE-2024-1234", "reasoning": "Needs both CVE data and remediation advice"}

For "none" (off-topic, not about security):
{"route_type": "none", "unstructured_query": null, "structured_query": null, "reasoning": "Not about security"}

USER QUESTION: {query}

BEFORE RESPONDING: If route_type="hybrid", verify BOTH query fields are non-empty strings.

JSON:`

// databaseRagSystemPrompt drives the agentic tool loop over the
// vulnerability database.
const databaseRagSystemPrompt = `You are a data analyst with access to a vulnerability database.

RULES:
- Call ONE tool at a time
- Never repeat a tool call you have already made with the same arguments
- After receiving tool results, either call another tool or provide your final answer
- Base your answer strictly on the data returned by tools
- If no data is found, say so clearly`

// databaseRagForceAnswer is appended when the tool budget is exhausted
// or the model repeats a call.
const databaseRagForceAnswer = `You must now provide your final answer based on the data collected so far. Do not call any more tools.`

// advisoryAnswerPrompt synthesizes an answer from retrieved advisory
// sections. {context} and {query} are replaced before sending.
const advisoryAnswerPrompt = `You are a security expert answering questions based on security advisory documents.

CONTEXT FROM SECURITY ADVISORIES:
{context}

USER QUESTION: {query}

INSTRUCTIONS:
1. Answer the question using ONLY the information provided in the context above
2. If the context doesn't contain enough information to fully answer, say so clearly
3. Be specific - mention CVE IDs, package names, version numbers when relevant
4. For remediation questions, include concrete steps (upgrade commands, code fixes)
5. Keep your answer focused and concise

ANSWER:`

// advisoryNoResultsAnswer is returned when semantic search finds nothing.
const advisoryNoResultsAnswer = `I couldn't find any relevant security advisory information for your question. Try rephrasing or asking about specific vulnerability types (XSS, SQL injection, RCE) or CVE IDs.`

// synthesisPrompt combines both handlers' answers for hybrid queries.
// {query}, {reasoning}, {unstructured_answer} and {structured_answer}
// are replaced before sending.
const synthesisPrompt = `You are synthesizing information from two sources into a single coherent answer.

USER QUESTION: {query}

WHY BOTH SOURCES WERE NEEDED: {reasoning}

ANSWER FROM SECURITY ADVISORIES (explanations, attack patterns, remediation guidance):
{unstructured_answer}

ANSWER FROM VULNERABILITY DATABASE (CVE records, statistics, package data):
{structured_answer}

INSTRUCTIONS:
1. Combine both answers into a single, coherent response
2. Weave the information together naturally - don't just concatenate
3. Use database facts (CVE IDs, counts, versions) to ground the advisory context
4. Use advisory explanations to give meaning to the database facts
5. If information conflicts, prefer database for hard facts, advisories for context
6. Keep the response focused on what the user actually asked

COMBINED ANSWER:`

// offTopicResponseTemplate answers queries routed to "none".
// %s is the router's reasoning.
const offTopicResponseTemplate = `I'm a security vulnerability assistant.
Your question appears to be off-topic: %s

I can help with:
- Security advisories and vulnerability explanations
- CVE lookups and vulnerability statistics
- Remediation guidance`
