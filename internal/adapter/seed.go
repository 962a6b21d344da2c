package adapter

import (
	"book-portal/internal/core/model"
	"book-portal/pkg/util"
	"fmt"
	"time"
)

// SeedDemo fills a catalog with accounts and data for local development:
// admin/admin (ADMIN), lectora/lectora (MEMBER), autora/autora (AUTHOR).
func SeedDemo(cat *MemoryCatalog) error {
	if _, err := cat.AddAccount("admin", "admin", "ADMIN"); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	readerID, err := cat.AddAccount("lectora", "lectora", "MEMBER")
	if err != nil {
		return fmt.Errorf("seed reader: %w", err)
	}
	if _, err := cat.AddAccount("autora", "autora", "AUTHOR"); err != nil {
		return fmt.Errorf("seed author: %w", err)
	}

	books := []model.Book{
		{Title: "Cien años de soledad", Authors: []string{"Gabriel García Márquez"}, Genre: "novela", PublishedYear: util.GetPtr(1967), Formats: []model.Format{model.FormatPaperback}},
		{Title: "Rayuela", Authors: []string{"Julio Cortázar"}, Genre: "novela", PublishedYear: util.GetPtr(1963)},
		{Title: "Ficciones", Authors: []string{"Jorge Luis Borges"}, Genre: "cuentos", PublishedYear: util.GetPtr(1944), Formats: []model.Format{model.FormatEbook}},
		{Title: "La casa de los espíritus", Authors: []string{"Isabel Allende"}, Genre: "novela", PublishedYear: util.GetPtr(1982)},
		{Title: "Pedro Páramo", Authors: []string{"Juan Rulfo"}, Genre: "novela", PublishedYear: util.GetPtr(1955)},
		{Title: "El Aleph", Authors: []string{"Jorge Luis Borges"}, Genre: "cuentos", PublishedYear: util.GetPtr(1949)},
		{Title: "Nada", Authors: []string{"Carmen Laforet"}, Genre: "novela", PublishedYear: util.GetPtr(1945)},
		{Title: "Los detectives salvajes", Authors: []string{"Roberto Bolaño"}, Genre: "novela", PublishedYear: util.GetPtr(1998), Subtitle: util.GetPtr("Novela")},
	}
	for _, b := range books {
		if _, err := cat.AddBook(b); err != nil {
			return fmt.Errorf("seed book %q: %w", b.Title, err)
		}
	}

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 23; i++ {
		it := model.ModerationItem{
			Queue:     model.QueueSuggestions,
			Title:     fmt.Sprintf("Sugerencia %02d", i),
			Submitter: "lectora",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := cat.AddModerationItem(it); err != nil {
			return fmt.Errorf("seed suggestion: %w", err)
		}
	}
	for i, name := range []string{"autora", "Elena Ferrante", "Mario Vargas Llosa"} {
		it := model.ModerationItem{
			Queue:     model.QueueAuthorRequests,
			Title:     name,
			Submitter: name,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if _, err := cat.AddModerationItem(it); err != nil {
			return fmt.Errorf("seed author request: %w", err)
		}
	}

	for _, name := range []string{"Leyendo", "Pendientes", "Favoritos"} {
		cat.AddShelf(readerID, name)
	}
	return nil
}
