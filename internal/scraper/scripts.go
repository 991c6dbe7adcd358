package scraper

// In-page scripts evaluated through Page.Evaluate. Each returns a JSON
// value; URLs come back raw and are normalized in Go before dedup.

// listingScript scans every item-linking anchor and returns
// [{href, title, author, likes}].
const listingScript = `(() => {
	const out = [];
	const textOf = (el) => (el && el.textContent ? el.textContent.trim() : '');
	const links = document.querySelectorAll('a[href*="/video/"]');
	for (const link of links) {
		try {
			const href = link.getAttribute('href') || '';
			if (!href) continue;

			let title = '';
			const inline = link.querySelector('p, span, div');
			if (inline) title = textOf(inline);
			if (!title) title = (link.getAttribute('title') || '').trim();
			if (!title) title = textOf(link);
			if (title.length < 5) {
				const block = link.closest('li') || link.closest('div');
				const blockText = textOf(block);
				if (blockText.length >= 5 && blockText.length <= 500) title = blockText;
			}

			const scope = link.closest('li') || link.parentElement || link;
			const authorEl = scope.querySelector('[class*="author"], [class*="name"], [class*="user"]');
			const likesEl = scope.querySelector('[class*="like"], [class*="count"]');
			const likesText = textOf(likesEl);

			out.push({
				href: href,
				title: title,
				author: textOf(authorEl),
				likes: /\d/.test(likesText) ? likesText : ''
			});
		} catch (e) {}
	}
	return out;
})()`

// descriptionScript returns the first non-empty caption-like text.
const descriptionScript = `(() => {
	const els = document.querySelectorAll('[class*="desc"], [class*="title"], [class*="caption"]');
	for (const el of els) {
		const text = (el.textContent || '').trim();
		if (text) return text;
	}
	return '';
})()`

// commentTriggerScript clicks a comment icon located by class fragments.
const commentTriggerScript = `(() => {
	const el = document.querySelector('[data-e2e="comment-icon"], [class*="comment-icon"], [class*="CommentIcon"]');
	if (!el) return false;
	el.click();
	return true;
})()`

// continueOverlayScript dismisses the login guide by its "continue"
// text, falling back to the footer close controls.
const continueOverlayScript = `(() => {
	const phrase = '` + ContinuePhrase + `';
	for (const el of document.querySelectorAll('div, span, p')) {
		if (el.children.length === 0 && (el.textContent || '').includes(phrase)) {
			el.click();
			return true;
		}
	}
	const close = document.querySelector('[class*="footer-close"], [class*="login-guide"] [class*="footer"]');
	if (close) {
		close.click();
		return true;
	}
	return false;
})()`

// scrollCommentsScript advances the comment list by one step and
// reports whether a dedicated container existed.
const scrollCommentsScript = `(() => {
	const list = document.querySelector('[class*="comment-list"], [class*="CommentList"], [data-e2e="comment-list"]');
	if (list) {
		list.scrollTop += 500;
		return true;
	}
	window.scrollBy(0, 300);
	return false;
})()`

// commentsScript returns [{text, username, likes}] in document order.
const commentsScript = `(() => {
	const out = [];
	const textOf = (el) => (el && el.textContent ? el.textContent.trim() : '');
	const items = document.querySelectorAll('[data-e2e="comment-item"], [class*="comment-item"], [class*="CommentItem"], div[class*="xzjbH9qV"]');
	for (const item of items) {
		try {
			let text = textOf(item.querySelector('[class*="comment-info-wrap"] span, [class*="LvAtyU_f"] span, [class*="j5WZzJdp"], span[class*="sU2yAQQU"]'));
			if (!text) {
				for (const span of item.querySelectorAll('span')) {
					const t = textOf(span);
					if (t.length > 10 && t.length < 500) {
						text = t;
						break;
					}
				}
			}
			if (!text) continue;

			const userEl = item.querySelector('[class*="comment-item-avatar"], [class*="VPtAXFCJ"], [class*="author"], [class*="name"]');
			const likesText = textOf(item.querySelector('[class*="like"], [class*="count"]'));
			out.push({
				text: text,
				username: textOf(userEl) || (userEl ? (userEl.getAttribute('title') || '') : ''),
				likes: /\d/.test(likesText) ? likesText : ''
			});
		} catch (e) {}
	}
	return out;
})()`
