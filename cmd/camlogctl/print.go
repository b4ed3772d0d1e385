package main

import (
	"fmt"
	"strings"
	"time"
)

func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func printStatus(r map[string]any) {
	fmt.Printf("Profile:     %s\n", str(r["profile"]))
	fmt.Printf("Status:      %s\n", str(r["status"]))
	if e := str(r["last_error"]); e != "" {
		fmt.Printf("Last error:  %s\n", e)
	}
	fmt.Printf("Online:      %v\n", r["online"])
	if r["configured"] == true {
		fmt.Printf("Endpoint:    %s\n", str(r["endpoint"]))
	} else {
		fmt.Println("Endpoint:    not configured (local-only)")
	}
	fmt.Printf("Auto upload: armed=%v retry_pending=%v\n", r["armed"], r["retry_pending"])
	st := obj(r["stats"])
	fmt.Printf("Queue:       %d item(s), %d pending, %d photo(s), %d KB\n",
		num(st["items"]), num(st["pending"]), num(st["photos"]), num(st["total_kb"]))
	fmt.Printf("Draft:       %d photo(s)\n", num(st["draft_photos"]))
	if ms, ok := r["last_success_ms"].(float64); ok {
		fmt.Printf("Last sync:   %s (%d item(s))\n", time.UnixMilli(int64(ms)).Format(time.DateTime), num(r["last_delivered"]))
	}
	if ms, ok := r["last_failure_ms"].(float64); ok {
		fmt.Printf("Last fail:   %s %s: %s\n", time.UnixMilli(int64(ms)).Format(time.DateTime), str(r["last_failure_upload_id"]), str(r["last_failure"]))
	}
}

func printDraft(d map[string]any) {
	fmt.Printf("Mode: %s (%s)\n", str(d["mode"]), str(d["mode_label"]))
	fmt.Printf("PO:   %s\n", str(d["po"]))
	if d["optional_visible"] == true || str(d["git"]) != "" || str(d["note"]) != "" {
		fmt.Printf("GIT:  %s\n", str(d["git"]))
		fmt.Printf("Note: %s\n", str(d["note"]))
	}
	fmt.Printf("PIC:  %s\n", str(d["pic"]))
	photos := list(d["photos"])
	fmt.Printf("Photos: %d (%d KB, %d free)\n", len(photos), num(d["total_kb"]), num(d["free_slots"]))
	for i, p := range photos {
		ph := obj(p)
		fmt.Printf("  %2d. %-8s %4d KB  %s\n", i+1, str(ph["kind"]), num(ph["size_kb"]), str(ph["id"]))
	}
}

func printItem(it map[string]any) {
	state := "pending"
	if it["uploaded"] == true {
		state = "uploaded"
	}
	fmt.Printf("%3d. %-28s %2d photo(s) %5d KB  %-8s %s\n",
		num(it["index"])+1, str(it["label"]), len(list(it["photo_ids"])), num(it["total_kb"]), state, str(it["upload_id"]))
}

func printQueue(r map[string]any) {
	items := list(r["items"])
	if len(items) == 0 {
		fmt.Println("queue is empty")
	}
	for _, it := range items {
		printItem(obj(it))
	}
	if r["locked"] == true {
		fmt.Println("(upload in progress)")
	}
}

func printRows(rows []any) {
	if len(rows) == 0 {
		fmt.Println("no rows")
		return
	}
	for _, r := range rows {
		row := obj(r)
		fmt.Printf("%-19s %-9s %-14s %-12s %s\n",
			str(row["time"]), str(row["category"]), str(row["po"]), str(row["pic"]), str(row["photo_id"]))
	}
}

func printSearch(r map[string]any) {
	git := list(r["git"])
	photos := list(r["photos"])
	if len(git) == 0 && len(photos) == 0 {
		fmt.Printf("nothing found for %s\n", str(r["query"]))
		return
	}
	for _, g := range git {
		rec := obj(g)
		fmt.Printf("GIT %s  PO %s  %s  %s\n", str(rec["git"]), str(rec["po"]), str(rec["vendor"]), str(rec["timestamp"]))
		if e := str(rec["materials_err"]); e != "" {
			fmt.Printf("  materials unreadable: %s\n", e)
		}
		for _, m := range list(rec["materials"]) {
			mat := obj(m)
			fmt.Printf("  - %s: %v %s\n", str(mat["material"]), mat["qty"], str(mat["unit"]))
		}
		if ids := list(rec["photo_ids"]); len(ids) > 0 {
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = str(id)
			}
			fmt.Printf("  photos: %s\n", strings.Join(parts, ", "))
		}
	}
	if len(photos) > 0 {
		if r["legacy"] == true {
			fmt.Println("photos (legacy list):")
		} else {
			fmt.Println("photos:")
		}
		printRows(photos)
	}
}
