/*
Package classify labels flattened USSD screens and extracts carrier references.

Classification is a keyword heuristic, checked in a fixed order: success keywords
first, then error keywords, otherwise the screen asks the engine to continue. The
order is deliberate policy: confirmation screens sometimes carry error-sounding
disclaimers ("no errors found"). The flip side is that a decline which mentions a
reference number is reported as success; this is a known limitation.

Keyword lists are data, not code. A Profile names and versions one set of lists
so operators can tune them per carrier (via config) without touching the engine.
*/
package classify
