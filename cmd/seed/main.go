package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hotvault/hotvault-backend/config"
	"github.com/hotvault/hotvault-backend/internal/app/repository"
	"github.com/hotvault/hotvault-backend/internal/app/service"
	"github.com/hotvault/hotvault-backend/internal/db"
	"github.com/xuri/excelize/v2"
)

// Column headers recognised in the first row. Sheets without a header row
// use this order.
var columns = []string{"model", "year", "name", "purchasedate", "barcode"}

func main() {
	assumeYes := flag.Bool("yes", false, "import without asking for confirmation")
	flag.Usage = func() {
		fmt.Println("Usage: go run cmd/seed/main.go [-yes] <xlsx_file_path>")
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		log.Fatal("missing xlsx file path")
	}
	filePath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	inputs, skipped, err := readHotwheelsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	fmt.Printf("Hotwheels to import: %d (unreadable rows skipped: %d)\n", len(inputs), skipped)

	if !*assumeYes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	hotwheelService := service.NewHotwheelService(repository.NewHotwheelRepository(db.GetDB()))
	result, err := hotwheelService.ImportHotwheels(context.Background(), inputs)
	if err != nil {
		log.Fatal("Import failed:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Created: %d, existing barcodes skipped: %d\n", result.Created, result.Skipped)
}

// readHotwheelsFromXLSX reads the first sheet. Rows with missing or
// unparseable cells are counted and skipped.
func readHotwheelsFromXLSX(filePath string) ([]service.CreateHotwheelInput, int, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	// raw values keep date cells as serial numbers regardless of display format
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("no data found in XLSX file")
	}

	index, hasHeader := headerIndex(rows[0])
	if hasHeader {
		rows = rows[1:]
	}

	var inputs []service.CreateHotwheelInput
	skipped := 0
	for _, row := range rows {
		input, ok := parseRow(row, index)
		if !ok {
			skipped++
			continue
		}
		inputs = append(inputs, input)
	}
	return inputs, skipped, nil
}

func headerIndex(row []string) (map[string]int, bool) {
	index := make(map[string]int, len(columns))
	for i, cell := range row {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cell), " ", ""))
		for _, col := range columns {
			if key == col {
				index[col] = i
			}
		}
	}
	if len(index) == len(columns) {
		return index, true
	}

	for i, col := range columns {
		index[col] = i
	}
	return index, false
}

func parseRow(row []string, index map[string]int) (service.CreateHotwheelInput, bool) {
	cell := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	input := service.CreateHotwheelInput{
		Model:   cell("model"),
		Name:    cell("name"),
		Barcode: cell("barcode"),
	}
	if input.Model == "" || input.Name == "" || input.Barcode == "" {
		return input, false
	}

	year, err := parseYear(cell("year"))
	if err != nil {
		return input, false
	}
	input.Year = year

	date, err := parseCellDate(cell("purchasedate"))
	if err != nil {
		return input, false
	}
	input.PurchaseDate = date
	return input, true
}

func parseYear(value string) (int, error) {
	if year, err := strconv.Atoi(value); err == nil {
		return year, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid year %q", value)
	}
	return int(f), nil
}

// parseCellDate accepts Excel serial dates and common textual layouts.
func parseCellDate(value string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02/01/2006", "2006/01/02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}
