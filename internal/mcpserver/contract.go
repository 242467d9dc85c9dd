package mcpserver

// DocumentFormatContract describes the document layout LLM consumers should
// follow when creating or updating documents.
const DocumentFormatContract = `# Pile Document Format Contract

Every document stored in Pile is a text file made of a YAML front-matter
block followed by a Markdown body.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # schema field, plain text
slug: human-readable-title         # schema field, plain text
tags: [one, two]                   # OPTIONAL - used for filtering
---
Body text in standard Markdown.

![Photo.png](/attachments/photo.png)
` + "```" + `

## Rules

1. **The opening ` + "`---`" + ` line must be the very first line.** Anything
   before it, even a blank line, turns the whole file into body.
2. **Front matter is a YAML mapping.** Keys are plain strings. A block that is
   not a mapping, or is not valid YAML, is treated as body text.
3. **Everything after the closing ` + "`---`" + ` line is the body**, byte for byte.
   The body may itself contain ` + "`---`" + ` lines.
4. **Schema fields** (by default ` + "`title`" + ` and ` + "`slug`" + `) are edited as
   plain text in the editor and are written first, in schema order. Values
   that look like numbers, booleans or dates are quoted on save so they stay
   text.
5. **File paths** end with ` + "`.md`" + ` or ` + "`.mdx`" + ` and use forward slashes.
6. **Media** is referenced as ` + "`![name](url)`" + ` on its own line, separated
   from the text before it by one blank line.

## Assets

- Upload assets with the ` + "`upload_asset`" + ` tool. It returns a
  ` + "`markdownImage`" + ` field ready to paste into the body.
- Assets are stored flat in ` + "`attachments/`" + ` and served from
  ` + "`/attachments/<name>`" + `.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf, mp4, webm, m4a,
  mp3, wav, ogg.
- Use ` + "`get_referrers`" + ` to find the documents that embed an asset.
`
