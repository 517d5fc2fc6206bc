package mcpserver

// OutlineFormatContract describes the Markdown outline notes are imported
// from and exported to, and the edit steps sessions accept.
const OutlineFormatContract = `# Sowilo Outline Format

A note is a tree of elements. ` + "`" + `read_note` + "`" + ` returns it as a Markdown outline and
` + "`" + `create_note` + "`" + ` accepts the same format.

## Structure

` + "```" + `markdown
---
title: Groceries          # OPTIONAL – defaults to the first element's text
id: <uuid>                # OPTIONAL – keeps the note id on re-import
---
# Heading 1
- plain element with **bold**, _italic_, ~~struck~~, ` + "`" + `code` + "`" + ` and [a link](https://example.com)
  - [ ] todo child
  - [x] done child
## Heading 2
> quote
` + "```" + `ls -la` + "```" + `
![caption](/files/<file-id>)
-
` + "```" + `

## Rules

1. One element per line. Children are indented by **two spaces** per level.
2. A line with a single ` + "`" + `-` + "`" + ` is an empty plain element.
3. Escape literal ` + "`" + `\ * _ ~ [ ]` + "`" + ` and backticks with a backslash.
4. Images reference uploaded files as ` + "`" + `/files/<file-id>` + "`" + `. Upload with ` + "`" + `upload_file` + "`" + `.
5. Underline has no Markdown form and is dropped on export.

## Edit steps

Open a session with ` + "`" + `open_session` + "`" + `, then send steps to ` + "`" + `apply_steps` + "`" + `.
Elements are referenced by uuid or by index path from the root: ` + "`" + `"0"` + "`" + ` is the first
top-level element, ` + "`" + `"2.1"` + "`" + ` the second child of the third.

| op | arguments |
|----|-----------|
| type | element, text, cursor |
| insert_text | element, text, cursor |
| delete_text | element, start, end |
| replace_text | element, start, end, text |
| backspace / forward_delete | element, cursor |
| insert_element | parent, after, text, kind, file |
| delete_element | element |
| reparent | element, parent, index |
| indent / outdent | element |
| split | element, cursor |
| format_kind | element, kind (plain, heading1-3, quote, code, todo, done, image) |
| format_attribute | element, attribute (bold, italic, underline, strikethrough, code, link), url, start, end |
| focus | element, cursor |
| select | start, end |
| undo / redo | |
| zoom | element |
| zoom_out | |

Steps run in order and stop at the first failure; earlier steps stay applied.
` + "`" + `zoom` + "`" + ` and ` + "`" + `zoom_out` + "`" + ` only move the session view and never enter the undo history.
Consecutive ` + "`" + `type` + "`" + ` steps that continue each other merge into one undo entry.

## Example

` + "```" + `json
[
  {"op": "insert_element", "text": "Buy milk", "kind": "todo"},
  {"op": "type", "element": "0", "text": " today", "cursor": 8},
  {"op": "format_attribute", "element": "0", "attribute": "bold", "start": 0, "end": 3}
]
` + "```" + `
`
