package mcpserver

// NoteFormatContract describes how notes are presented to and accepted from
// LLM clients.
const NoteFormatContract = `# Inkwell Note Format

Notes are private to the account whose token the server was started with.

## Reading

` + "`read_note`" + ` returns Markdown with a YAML header:

` + "```" + `markdown
---
id: 3f2b8c1e-5d7a-4e0b-9c61-2a4f8e9d0b17
title: Weekly standup
tags: [meeting-notes, project-x]
version: 3
created: 2026-01-20T09:00:00Z
updated: 2026-01-21T17:30:00Z
---
Body text in standard Markdown.
` + "```" + `

The header is generated; everything after the closing ` + "`---`" + ` line is the
note content exactly as stored.

## Writing

- ` + "`create_note`" + ` takes ` + "`title`" + `, ` + "`content`" + ` and optional ` + "`tags`" + `. When
  ` + "`title`" + ` is omitted, ` + "`content`" + ` is read as Markdown: the header ` + "`title`" + ` or
  the first ` + "`# `" + ` heading becomes the title and header ` + "`tags`" + ` become tags.
- ` + "`update_note`" + ` requires the ` + "`version`" + ` you last read. If someone changed the
  note since, the call fails with a version conflict: read the note again,
  merge, and retry with the new version.
- Omitted fields are left unchanged; an empty string clears a field.

## Rules

1. Title is required, at most 200 characters, not blank.
2. Content is at most 1 MiB.
3. At most 50 tags, each at most 64 characters. Tags are case-sensitive and
   duplicates are dropped.
4. Search matches text case-insensitively in title and content, and tags by
   exact value (any of the listed tags).
`
